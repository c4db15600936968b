package filestore

// KeyDerivations reports how many times scrypt has run for this store.
func (fs *FileStore) KeyDerivations() int {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.derivations
}
