// Package surface wires tracking, configuration and transport into the tracker and monitor services.
package surface

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Uploader publishes a resource file and returns the identifier it is known under
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Downloader fetches a published image into dir and returns the written path
type Downloader interface {
	Download(ctx context.Context, id, dir string) (string, error)
}

// HTTPUploader talks to the image REST API of the surface server:
// POST /api/images {"name"} creates a resource and answers {"uuid"},
// PUT /api/images/<uuid> with multipart field "data" stores the content,
// GET /api/images/<uuid> returns it.
type HTTPUploader struct {
	baseURL string
	client  *http.Client
}

// NewHTTPUploader creates an uploader for the server at host:port
func NewHTTPUploader(host string, port int, timeout time.Duration) *HTTPUploader {
	return &HTTPUploader{
		baseURL: "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
		client:  &http.Client{Timeout: timeout},
	}
}

// NewHTTPUploaderWithClient uses a custom base URL and client
func NewHTTPUploaderWithClient(baseURL string, client *http.Client) *HTTPUploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPUploader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type createImageRequest struct {
	Name string `json:"name"`
}

type createImageResponse struct {
	UUID string `json:"uuid"`
}

// Upload creates an image resource named after the file and stores the file content in it
func (uploader *HTTPUploader) Upload(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read upload resource")
	}
	id, err := uploader.create(ctx, filepath.Base(path))
	if err != nil {
		return "", err
	}
	if err := uploader.put(ctx, id, filepath.Base(path), content); err != nil {
		return "", err
	}
	return id, nil
}

func (uploader *HTTPUploader) create(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(createImageRequest{Name: name})
	if err != nil {
		return "", errors.Wrap(err, "encode create request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploader.baseURL+"/api/images", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := uploader.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "resource creation failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("resource creation failed with code %d: %s", resp.StatusCode, resp.Status)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return "", errors.Errorf("server reply format %q not supported", resp.Header.Get("Content-Type"))
	}
	var created createImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", errors.Wrap(err, "decode create reply")
	}
	if created.UUID == "" {
		return "", errors.New("create reply has no uuid")
	}
	return created.UUID, nil
}

func (uploader *HTTPUploader) put(ctx context.Context, id, name string, content []byte) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("data", name)
	if err != nil {
		return errors.Wrap(err, "multipart field")
	}
	if _, err := part.Write(content); err != nil {
		return errors.Wrap(err, "multipart content")
	}
	if err := form.Close(); err != nil {
		return errors.Wrap(err, "multipart close")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploader.baseURL+"/api/images/"+id, &body)
	if err != nil {
		return errors.Wrap(err, "upload request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := uploader.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "upload failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("upload failed with code %d: %s", resp.StatusCode, resp.Status)
	}
	return nil
}

// Download stores image id as <dir>/<id>.<subtype>, the subtype taken from the reply content type
func (uploader *HTTPUploader) Download(ctx context.Context, id, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uploader.baseURL+"/api/images/"+id, nil)
	if err != nil {
		return "", errors.Wrap(err, "download request")
	}
	resp, err := uploader.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "could not get image")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("could not get image: code %d: %s", resp.StatusCode, resp.Status)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	kind, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || kind != "image" || subtype == "" {
		return "", errors.Errorf("reply type %q is no image", resp.Header.Get("Content-Type"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create image dir")
	}
	path := filepath.Join(dir, id+"."+subtype)
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create image file")
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", errors.Wrap(err, "write image file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "close image file")
	}
	return path, nil
}

// LocalUploader derives a stable name-based UUID (v5) from the file content, so identical
// images share a symbol without a server.
type LocalUploader struct {
	namespace uuid.UUID
}

// NewLocalUploader creates an uploader in the URL namespace
func NewLocalUploader() *LocalUploader {
	return &LocalUploader{namespace: uuid.NameSpaceURL}
}

// Upload returns the UUID of the file content
func (uploader *LocalUploader) Upload(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read upload resource")
	}
	return uuid.NewSHA1(uploader.namespace, content).String(), nil
}
