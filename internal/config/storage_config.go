package config

type StoreType string

const (
	StoreMemory StoreType = "memory"
	StoreFile   StoreType = "file"
	StoreRedis  StoreType = "redis"
)

type StorageConfig interface {
	GetCredentialStore() StoreType
	GetDataFolder() string
	GetCredentialKey() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetCredentialStore() StoreType {
	switch t := StoreType(GetEnv("CREDENTIAL_STORE", string(StoreFile))); t {
	case StoreMemory, StoreFile, StoreRedis:
		return t
	default:
		return StoreFile
	}
}

func (Storage) GetDataFolder() string {
	return GetEnv("DATA_FOLDER", "./data")
}

// GetCredentialKey is the passphrase the file store derives its sealing key from.
func (Storage) GetCredentialKey() string {
	return GetEnv("CREDENTIAL_KEY", "")
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Storage) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}
