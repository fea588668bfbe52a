package upload

import (
	"io"
	"mime"
	"strings"

	"onboard/internal/profile/models"
)

// MaxFileSize is the largest document accepted for transfer.
const MaxFileSize int64 = 10 << 20

// allowedContentTypes lists the accepted document formats. image/jpg is not
// a registered type but browsers and scanners still send it.
var allowedContentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// File is a local document selected for upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Result is what the remote store reports for a completed transfer.
type Result struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
}

// AllowedContentType reports whether contentType (parameters ignored) is an
// accepted document format.
func AllowedContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	return allowedContentTypes[strings.ToLower(strings.TrimSpace(mediaType))]
}

// CheckFile enforces the size and type constraints. A violation is reported
// as *models.FileRejected.
func CheckFile(name, contentType string, size int64) error {
	reject := func(reason models.RejectReason) error {
		return &models.FileRejected{FileName: name, Reason: reason, Size: size, ContentType: contentType}
	}
	switch {
	case size <= 0:
		return reject(models.RejectEmpty)
	case size > MaxFileSize:
		return reject(models.RejectTooLarge)
	case !AllowedContentType(contentType):
		return reject(models.RejectUnsupportedType)
	}
	return nil
}

// Check applies CheckFile to f.
func (f File) Check() error {
	return CheckFile(f.Name, f.ContentType, f.Size)
}
