package export

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/queue"
	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultTokenType  = "erc20"
	DefaultFilePrefix = "spin-rewards"
)

// Header is the first line of every export.
var Header = []string{"token_type", "token_address", "receiver", "amount", "id"}

// LogSource provides the completed log.
type LogSource interface {
	Completed() []queue.SpinResult
}

// Options controls the export rows and file name.
type Options struct {
	TokenType    string
	TokenAddress string
	FilePrefix   string
}

// OptionsFromConfig combines the export and chain sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TokenType:    cfg.Export.TokenType,
		TokenAddress: cfg.Chain.TokenAddress,
		FilePrefix:   cfg.Export.FilePrefix,
	}
}

// Document is one rendered export.
type Document struct {
	Data     []byte `json:"-"`
	Checksum string `json:"checksum"`
	FileName string `json:"file_name"`
	Rows     int    `json:"rows"`
}

// Text returns the export as a string, as copied to the clipboard.
func (d *Document) Text() string {
	return string(d.Data)
}

// CSV renders results in log order. The output depends only on its inputs,
// so the same log always exports to the same bytes. The id column is left
// empty.
func CSV(results []queue.SpinResult, tokenType, tokenAddress string) ([]byte, string, error) {
	if tokenType == "" {
		tokenType = DefaultTokenType
	}
	if tokenAddress != "" {
		if !common.IsHexAddress(tokenAddress) {
			return nil, "", errors.NewWithDebug(errors.ErrConfigError, "token address is malformed", tokenAddress)
		}
		tokenAddress = common.HexToAddress(tokenAddress).Hex()
	}

	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(Header); err != nil {
		return nil, "", err
	}
	for _, r := range results {
		record := []string{
			tokenType,
			tokenAddress,
			r.Participant.WalletAddress,
			r.PrizeValue.String(),
			"",
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}

	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

// FileName returns the date-named file for day, e.g. spin-rewards-2024-05-01.csv.
func FileName(prefix string, day time.Time) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	return fmt.Sprintf("%s-%s.csv", prefix, day.Format("2006-01-02"))
}

// Service renders the engine's completed log.
type Service struct {
	log  LogSource
	opts Options
	now  func() time.Time
}

// NewService creates an export service.
func NewService(log LogSource, opts Options) *Service {
	return &Service{log: log, opts: opts, now: time.Now}
}

// Render builds the export for the current log.
func (s *Service) Render() (*Document, error) {
	results := s.log.Completed()
	data, checksum, err := CSV(results, s.opts.TokenType, s.opts.TokenAddress)
	if err != nil {
		return nil, err
	}
	return &Document{
		Data:     data,
		Checksum: checksum,
		FileName: FileName(s.opts.FilePrefix, s.now()),
		Rows:     len(results),
	}, nil
}

// WriteFile renders the export into dir and returns the file path.
func (s *Service) WriteFile(dir string) (string, *Document, error) {
	doc, err := s.Render()
	if err != nil {
		return "", nil, err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, doc.FileName)
	if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
		return "", nil, fmt.Errorf("failed to write export: %w", err)
	}
	return path, doc, nil
}
