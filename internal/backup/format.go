package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FormatVersion is the current backup file format.
const FormatVersion = 1

// Backup filenames are prefix + timestamp + extension so listing and
// retention can identify them.
const (
	filePrefix = "stabsim-backup-"
	fileExt    = ".backup"
)

// maxPayloadBytes caps decompression. A run archive past this is almost
// certainly corrupt or hostile.
const maxPayloadBytes = 200 * 1024 * 1024

// Header is the plain-text first line of a backup file. It carries a
// checksum of the compressed payload so integrity is checkable without
// decompressing.
type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
	RunCount  int       `json:"run_count"`
	StepCount int       `json:"step_count"`
}

// WriteArchive writes an archive as one JSON header line followed by the
// gzip-compressed JSON payload.
func WriteArchive(path string, a *Archive) (*Header, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshaling archive: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing archive: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	hash := sha256.Sum256(compressed.Bytes())
	steps := 0
	for _, ar := range a.Runs {
		steps += len(ar.Steps)
	}
	header := &Header{
		Version:   FormatVersion,
		CreatedAt: a.CreatedAt,
		Checksum:  "sha256:" + hex.EncodeToString(hash[:]),
		RunCount:  len(a.Runs),
		StepCount: steps,
	}

	headerLine, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating backup file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerLine, '\n')); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return nil, fmt.Errorf("writing payload: %w", err)
	}

	return header, nil
}

// ReadArchive reads a backup file, verifies its checksum, and decompresses
// the payload.
func ReadArchive(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening backup file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	if err := checkPayload(header, compressed); err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if len(decompressed) > maxPayloadBytes {
		return nil, fmt.Errorf("archive payload exceeds %d bytes", maxPayloadBytes)
	}

	var archive Archive
	if err := json.Unmarshal(decompressed, &archive); err != nil {
		return nil, fmt.Errorf("parsing archive: %w", err)
	}
	return &archive, nil
}

// ReadHeader reads only the header line without touching the payload.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening backup file: %w", err)
	}
	defer f.Close()

	return readHeader(bufio.NewReader(f))
}

// VerifyChecksum checks a backup file's integrity without decompressing it.
func VerifyChecksum(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening backup file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := readHeader(reader)
	if err != nil {
		return err
	}

	compressed, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}
	return checkPayload(header, compressed)
}

func readHeader(r *bufio.Reader) (*Header, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported backup version: %d", header.Version)
	}
	return &header, nil
}

func checkPayload(header *Header, compressed []byte) error {
	hash := sha256.Sum256(compressed)
	actual := "sha256:" + hex.EncodeToString(hash[:])
	if actual != header.Checksum {
		return fmt.Errorf("checksum mismatch: header %s, payload %s", header.Checksum, actual)
	}
	return nil
}

// isBackupFile reports whether name looks like a file GeneratePath produced.
func isBackupFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExt)
}
