package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"vidtube-server/internal/domain"
	"vidtube-server/internal/media"
)

const maxFieldBytes = 64 << 10

// UploadOptions bounds multipart uploads.
type UploadOptions struct {
	TempDir  string
	MaxBytes int64
}

type multipartForm struct {
	values map[string]string
	files  map[string]*media.File
}

func (f *multipartForm) value(name string) string {
	return f.values[name]
}

func (f *multipartForm) file(name string) *media.File {
	return f.files[name]
}

// removeAll deletes every spooled file. Handlers defer it so temp files never outlive the request.
func (f *multipartForm) removeAll() {
	for _, file := range f.files {
		_ = file.Remove()
	}
}

// readMultipart streams a multipart body. Parts named in fileFields are spooled to disk through
// media.Spool; other file parts are skipped; plain fields are kept in memory.
func readMultipart(w http.ResponseWriter, r *http.Request, opts UploadOptions, fileFields ...string) (*multipartForm, error) {
	form := &multipartForm{
		values: make(map[string]string),
		files:  make(map[string]*media.File),
	}

	r.Body = http.MaxBytesReader(w, r.Body, opts.MaxBytes*int64(len(fileFields)+1))
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, domain.Wrap(domain.ErrValidation, "expected a multipart/form-data body", err)
	}

	wanted := make(map[string]bool, len(fileFields))
	for _, name := range fileFields {
		wanted[name] = true
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			form.removeAll()
			return nil, domain.Wrap(domain.ErrValidation, "malformed multipart body", err)
		}

		if err := form.consume(part, wanted, opts); err != nil {
			part.Close()
			form.removeAll()
			return nil, err
		}
		part.Close()
	}

	return form, nil
}

func (f *multipartForm) consume(part *multipart.Part, wanted map[string]bool, opts UploadOptions) error {
	name := part.FormName()

	if part.FileName() == "" {
		data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		if err != nil {
			return domain.Wrap(domain.ErrValidation, "malformed multipart body", err)
		}
		f.values[name] = string(data)
		return nil
	}

	if !wanted[name] || f.files[name] != nil {
		return nil
	}

	file, err := media.Spool(part, part.FileName(), opts.TempDir, opts.MaxBytes)
	if err != nil {
		return uploadError(name, err)
	}
	f.files[name] = file
	return nil
}

func uploadError(field string, err error) error {
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return domain.Wrap(domain.ErrValidation, field+" exceeds the upload size limit", err)
	case errors.Is(err, media.ErrUnsupportedType):
		return domain.Wrap(domain.ErrValidation, field+" must be a JPEG, PNG or GIF image", err)
	case errors.Is(err, media.ErrEmptyFile):
		return domain.Wrap(domain.ErrValidation, field+" is empty", err)
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.Wrap(domain.ErrValidation, "request body too large", err)
		}
		return domain.Wrap(domain.ErrInternal, fmt.Sprintf("failed to receive %s", strings.ToLower(field)), err)
	}
}
