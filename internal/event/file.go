package event

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cdcgov/data-exchange-upload/blob-relay/internal/models"
)

const TypeSeparator = "_"

type FilePublisher[T Identifiable] struct {
	Dir string
}

func (mp *FilePublisher[T]) Publish(_ context.Context, event T) error {
	err := os.MkdirAll(mp.Dir, 0750)
	if err != nil && !os.IsExist(err) {
		return err
	}

	// identifiers are blob paths, keep them to a single file name
	id := strings.ReplaceAll(event.Identifier(), "/", TypeSeparator)
	filename := filepath.Join(mp.Dir, id+TypeSeparator+event.Type())
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	// write event to file.
	encoder := json.NewEncoder(f)
	err = encoder.Encode(event)
	if err != nil {
		return err
	}

	return nil
}

func (mp *FilePublisher[T]) Close() error {
	return nil
}

func (mp *FilePublisher[T]) Health(_ context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = "File Publisher " + mp.Dir
	info, err := os.Stat(mp.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			// created on first publish
			return rsp.BuildUpResponse()
		}
		return rsp.BuildErrorResponse(err)
	}
	if !info.IsDir() {
		return rsp.BuildErrorResponse(fmt.Errorf("%s is not a directory", mp.Dir))
	}
	return rsp.BuildUpResponse()
}
