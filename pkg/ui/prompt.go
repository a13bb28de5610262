package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tcnksm/go-input"
)

// Confirm asks a yes/no question on the controlling terminal.
func Confirm(query string, defaultYes bool) (bool, error) {
	tty_, err := OpenTTY()
	if err != nil {
		return false, errors.Wrap(err, "no terminal to confirm on, pass --yes")
	}
	defer func() {
		if err := tty_.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close tty")
		}
	}()

	return confirm(&input.UI{Writer: tty_, Reader: tty_}, query, defaultYes)
}

func confirm(ui *input.UI, query string, defaultYes bool) (bool, error) {
	def := "n"
	if defaultYes {
		def = "y"
	}
	answer, err := ui.Ask(query+" [y/n]", &input.Options{
		Default:  def,
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch answer {
			case "y", "Y", "n", "N":
				return nil
			default:
				return fmt.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, err
	}

	return answer == "y" || answer == "Y", nil
}

// LineReader reads one line of operator input at a time.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// NewLineReader prompts through go-input when in is a terminal, and reads plain
// lines otherwise so piped scripts are consumed in full.
func NewLineReader(in *os.File, out io.Writer) LineReader {
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		return &promptReader{ui: &input.UI{Reader: in, Writer: out}}
	}
	return &scanReader{scanner: bufio.NewScanner(in)}
}

type promptReader struct {
	ui *input.UI
}

func (p *promptReader) ReadLine(prompt string) (string, error) {
	line, err := p.ui.Ask(prompt, &input.Options{
		HideOrder: true,
	})
	if err != nil {
		if errors.Is(err, input.ErrInterrupted) {
			return "", io.EOF
		}
		return "", err
	}
	return line, nil
}

type scanReader struct {
	scanner *bufio.Scanner
}

func (s *scanReader) ReadLine(prompt string) (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(s.scanner.Text()), nil
}
