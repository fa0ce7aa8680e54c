package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
	"github.com/google/uuid"
)

type FileSource struct {
	FromPath string
}

func (src *FileSource) path(name string) string {
	return filepath.Join(src.FromPath, filepath.FromSlash(name))
}

func (src *FileSource) Download(_ context.Context, name string, w io.Writer) (SourceInfo, error) {
	info := SourceInfo{Size: -1}
	f, err := os.Open(src.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return info, fmt.Errorf("%w: %s", ErrSrcFileNotExist, name)
		}
		return info, err
	}
	defer f.Close()
	if stat, err := f.Stat(); err == nil {
		info.Size = stat.Size()
	}
	if _, err := io.Copy(w, f); err != nil {
		return info, err
	}
	return info, nil
}

func (src *FileSource) Delete(_ context.Context, name string) error {
	err := os.Remove(src.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSrcFileNotExist, name)
	}
	return err
}

func (src *FileSource) URL(name string) string {
	p, err := filepath.Abs(src.path(name))
	if err != nil {
		p = src.path(name)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
}

func (src *FileSource) Health(_ context.Context) models.ServiceHealthResp {
	return checkDir("File Source", src.FromPath)
}

type FileDestination struct {
	ToPath string
	Name   string
}

func (fd *FileDestination) Upload(_ context.Context, localPath string, objectName string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrLocalFileNotExist, localPath)
		}
		return "", err
	}
	defer src.Close()

	destPath := filepath.Join(fd.ToPath, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", err
	}
	dest, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		return destPath, err
	}
	return destPath, dest.Close()
}

func (fd *FileDestination) Health(_ context.Context) models.ServiceHealthResp {
	return checkDir("File Delivery Target "+fd.Name, fd.ToPath)
}

// FileCopyClient archives into a local folder. The copy completes inside StartCopy.
type FileCopyClient struct {
	ToPath string
	Name   string

	mu    sync.Mutex
	state CopyState
}

func (fc *FileCopyClient) StartCopy(_ context.Context, srcURL string) (CopyState, error) {
	u, err := url.Parse(srcURL)
	if err != nil {
		return CopyState{}, err
	}
	if u.Scheme != "file" {
		return CopyState{}, fmt.Errorf("unsupported copy source %s", srcURL)
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.state = CopyState{ID: uuid.NewString(), Status: CopyStatusSuccess}
	if err := copyFile(filepath.FromSlash(u.Path), filepath.Join(fc.ToPath, filepath.FromSlash(fc.Name))); err != nil {
		fc.state.Status = CopyStatusFailed
		fc.state.Description = err.Error()
	}
	return fc.state, nil
}

func (fc *FileCopyClient) GetCopyState(_ context.Context) (CopyState, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.state.ID == "" {
		return CopyState{}, errors.New("no copy started")
	}
	return fc.state, nil
}

func (fc *FileCopyClient) AbortCopy(_ context.Context, copyID string) error {
	return fmt.Errorf("%w: %s", ErrNoPendingCopy, copyID)
}

func copyFile(from string, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}
	dest, err := os.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		return err
	}
	return dest.Close()
}

func checkDir(service string, dir string) (rsp models.ServiceHealthResp) {
	rsp.Service = service
	info, err := os.Stat(dir)
	if err != nil {
		return rsp.BuildErrorResponse(err)
	}
	if !info.IsDir() {
		return rsp.BuildErrorResponse(fmt.Errorf("%s is not a directory", dir))
	}
	return rsp.BuildUpResponse()
}

