package content

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
)

// MaxImageBytes bounds a single uploaded image.
const MaxImageBytes = 10 << 20

var (
	// ErrImageTooLarge is returned for images above MaxImageBytes.
	ErrImageTooLarge = errors.New("content: image too large")
	// ErrNotAnImage is returned when an upload is not an image.
	ErrNotAnImage = errors.New("content: file is not an image")
)

// Image is an uploaded image file held in memory.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (img Image) validate() (Image, error) {
	if len(img.Data) == 0 {
		return Image{}, ErrNotAnImage
	}
	if len(img.Data) > MaxImageBytes {
		return Image{}, ErrImageTooLarge
	}
	sniffed := http.DetectContentType(img.Data)
	if !strings.HasPrefix(sniffed, "image/") {
		return Image{}, ErrNotAnImage
	}
	img.ContentType = sniffed
	img.Filename = filepath.Base(strings.ReplaceAll(img.Filename, "\\", "/"))
	if img.Filename == "." || img.Filename == "/" || img.Filename == "" {
		img.Filename = "upload"
	}
	return img, nil
}

type formBody struct {
	buf    bytes.Buffer
	writer *multipart.Writer
	err    error
}

func newFormBody() *formBody {
	f := &formBody{}
	f.writer = multipart.NewWriter(&f.buf)
	return f
}

func (f *formBody) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.writer.WriteField(name, value)
}

func (f *formBody) file(name string, img Image) {
	if f.err != nil {
		return
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, img.Filename))
	header.Set("Content-Type", img.ContentType)
	part, err := f.writer.CreatePart(header)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = part.Write(img.Data)
}

func (f *formBody) finish() (string, []byte, error) {
	if f.err != nil {
		return "", nil, fmt.Errorf("content: build form: %w", f.err)
	}
	if err := f.writer.Close(); err != nil {
		return "", nil, fmt.Errorf("content: close form: %w", err)
	}
	return f.writer.FormDataContentType(), f.buf.Bytes(), nil
}
