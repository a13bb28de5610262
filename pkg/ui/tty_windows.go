//go:build windows

package ui

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// OpenTTY returns the console input handle. Writes go to stdout.
func OpenTTY() (io.ReadWriteCloser, error) {
	handle, err := windows.GetStdHandle(windows.STD_INPUT_HANDLE)
	if err != nil {
		return nil, err
	}

	fd := os.NewFile(uintptr(handle), "conin$")
	if fd == nil {
		return nil, errors.New("failed to create file from console handle")
	}

	return &consoleTTY{in: fd}, nil
}

type consoleTTY struct {
	in *os.File
}

func (c *consoleTTY) Read(p []byte) (int, error) {
	return c.in.Read(p)
}

func (c *consoleTTY) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (c *consoleTTY) Close() error {
	return c.in.Close()
}
