// Package cli implements the dropgate command-line client: upload, download
// and delete against a transfer endpoint.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"

	"github.com/dropgate/dropgate/internal/client/agent"
	"github.com/dropgate/dropgate/internal/client/config"
)

// ownerEnvVar names the environment variable supplying the owner id used in
// generated storage keys.
const ownerEnvVar = "DROPGATE_OWNER"

type App struct {
	config *config.Config
	agent  *agent.Agent
	out    io.Writer
}

func NewApp(c *config.Config) *App {
	return &App{
		config: c,
		agent:  agent.New(c.ServerEndpointAddr, c.Token, c.RequestTimeout),
		out:    os.Stdout,
	}
}

func usage() string {
	return `Usage:
  dropgate upload <file> [storage-key]
  dropgate download <storage-key> [dest-file]
  dropgate delete <storage-key> [storage-key...]

Flags: -a endpoint, -k token, -r timeout seconds, -c config file`
}

// Run dispatches one command. args holds the positional arguments with flags
// already stripped.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage())
		return errors.New("no command given")
	}

	switch args[0] {
	case "upload":
		if len(args) < 2 {
			return errors.New("upload: file argument required")
		}
		key := ""
		if len(args) > 2 {
			key = args[2]
		}
		return a.upload(ctx, args[1], key)
	case "download":
		if len(args) < 2 {
			return errors.New("download: storage-key argument required")
		}
		dest := ""
		if len(args) > 2 {
			dest = args[2]
		}
		return a.download(ctx, args[1], dest)
	case "delete":
		if len(args) < 2 {
			return errors.New("delete: storage-key argument required")
		}
		return a.delete(ctx, args[1:])
	default:
		fmt.Fprintln(a.out, usage())
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (a *App) owner() string {
	if v := os.Getenv(ownerEnvVar); v != "" {
		return v
	}
	return "anonymous"
}

func (a *App) upload(ctx context.Context, path, key string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if key == "" {
		key = agent.NewStorageKey(a.owner(), filepath.Base(path))
	}

	contentType := ""
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		contentType = kind.MIME.Value
	}

	bar := newProgressBar(a.out, "upload")
	if err := a.agent.Upload(ctx, key, data, contentType, bar.update); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "uploaded %s (%d bytes) as %s\n", path, len(data), key)
	return nil
}

func (a *App) download(ctx context.Context, key, dest string) error {
	if dest == "" {
		dest = filepath.Base(key)
	}

	bar := newProgressBar(a.out, "download")
	data, _, err := a.agent.Download(ctx, key, 0, bar.update)
	if err != nil {
		return err
	}

	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	fmt.Fprintf(a.out, "downloaded %s (%d bytes) to %s\n", key, len(data), dest)
	return nil
}

func (a *App) delete(ctx context.Context, keys []string) error {
	if len(keys) == 1 {
		if err := a.agent.Delete(ctx, keys[0]); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted %s\n", keys[0])
		return nil
	}

	results, err := a.agent.DeleteMany(ctx, keys)
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(a.out, "deleted %s\n", r.Key)
		} else {
			fmt.Fprintf(a.out, "failed %s: %s\n", r.Key, r.Error)
		}
	}
	return err
}
