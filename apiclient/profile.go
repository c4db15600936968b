package apiclient

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/jrsteele09/go-jobportal-client/users"
	"github.com/pkg/errors"
)

const maxCVSize = 5 << 20

var ErrUnsupportedCVType = errors.New("cv must be a pdf, doc or docx file")

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (users.Patch, error) {
	var out users.Patch
	err := c.sendJSON(ctx, http.MethodPut, "/users/profile", true, update, &out)
	return out, err
}

// UploadCV sends a CV as multipart form data under the "cv" field.
func (c *Client) UploadCV(ctx context.Context, fileName string, r io.Reader) (*Document, error) {
	switch filepath.Ext(fileName) {
	case ".pdf", ".doc", ".docx":
	default:
		return nil, ErrUnsupportedCVType
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("cv", filepath.Base(fileName))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.UploadCV] CreateFormFile")
	}
	n, err := io.Copy(part, io.LimitReader(r, maxCVSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.UploadCV] copy")
	}
	if n > maxCVSize {
		return nil, errors.New("[Client.UploadCV] cv exceeds 5MB")
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "[Client.UploadCV] close writer")
	}

	var out Document
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/users/cv",
		authed:      true,
		rawBody:     &buf,
		contentType: mw.FormDataContentType(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSupportRequest(ctx context.Context, req SupportRequest) error {
	return c.sendJSON(ctx, http.MethodPost, "/support", true, req, nil)
}
