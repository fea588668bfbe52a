package persistence

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"onboard/internal/profile/models"
	"onboard/internal/upload"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody streams the form through a pipe so the file is never held in
// memory. The form carries the file under "file" and the type code under
// "type".
func multipartBody(t models.DocumentType, f upload.File) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeForm(mw, t, f)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()
	return pr, mw.FormDataContentType()
}

func writeForm(mw *multipart.Writer, t models.DocumentType, f upload.File) error {
	if err := mw.WriteField("type", string(t)); err != nil {
		return err
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(f.Name)))
	header.Set("Content-Type", f.ContentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if f.Body == nil {
		return fmt.Errorf("file %s has no content", f.Name)
	}
	_, err = io.Copy(part, f.Body)
	return err
}
