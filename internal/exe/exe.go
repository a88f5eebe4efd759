// Package exe reads and writes the compressed audit blob carried inside
// compiled binaries. The blob is the canonical JSON document compressed
// with zlib and stored in a linker section named ".dep-v0" (ELF and PE) or
// "__DATA,.dep-v0" (Mach-O), so external tooling can recover the dependency
// list without running the program.
package exe

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/depstamp/depstamp/pkg/audit"
	"github.com/klauspost/compress/zlib"
)

// SectionName is the linker section holding the audit blob.
const SectionName = ".dep-v0"

// machoSegment is the segment the audit section lives in on Mach-O.
const machoSegment = "__DATA"

// maxDecompressed bounds the inflated document size so a hostile binary
// cannot balloon memory through the blob.
const maxDecompressed = 8 << 20

var (
	// ErrNoAuditData means the executable was recognized but carries no
	// audit section.
	ErrNoAuditData = errors.New("no audit data found in the executable")
	// ErrNotAnExecutable means the input is not in any supported
	// executable format.
	ErrNotAnExecutable = errors.New("not an executable file")
)

// Encode validates the document and produces the compressed blob a build
// system can place into the audit section.
func Encode(info *audit.Info) ([]byte, error) {
	data, err := audit.Marshal(info)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decompresses a blob and fully re-validates the document.
func Decode(blob []byte) (*audit.Info, error) {
	r, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, &audit.MalformedDocumentError{Err: fmt.Errorf("not a zlib stream: %w", err)}
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxDecompressed+1))
	if err != nil {
		return nil, &audit.MalformedDocumentError{Err: fmt.Errorf("decompressing audit blob: %w", err)}
	}
	if len(data) > maxDecompressed {
		return nil, &audit.MalformedDocumentError{
			Err: fmt.Errorf("audit blob decompresses past the %d byte limit", maxDecompressed),
		}
	}
	return audit.Unmarshal(data)
}

// ExtractRaw locates the compressed audit blob in an executable. It
// returns ErrNotAnExecutable for unrecognized container formats and
// ErrNoAuditData when a recognized executable has no audit section.
func ExtractRaw(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, []byte("\x7fELF")):
		return elfSection(data)
	case bytes.HasPrefix(data, []byte("MZ")):
		return peSection(data)
	case isMachO(data):
		return machoSection(data)
	default:
		return nil, ErrNotAnExecutable
	}
}

// Extract is the full read path: locate, decompress, validate.
func Extract(data []byte) (*audit.Info, error) {
	blob, err := ExtractRaw(data)
	if err != nil {
		return nil, err
	}
	return Decode(blob)
}

// ExtractFile reads a binary from disk and extracts its audit document.
func ExtractFile(path string) (*audit.Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := Extract(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

func elfSection(data []byte) ([]byte, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("malformed ELF file: %w", err)
	}
	defer f.Close()

	sec := f.Section(SectionName)
	if sec == nil {
		return nil, ErrNoAuditData
	}
	blob, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("reading ELF section %s: %w", SectionName, err)
	}
	return blob, nil
}

func peSection(data []byte) ([]byte, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("malformed PE file: %w", err)
	}
	defer f.Close()

	sec := f.Section(SectionName)
	if sec == nil {
		return nil, ErrNoAuditData
	}
	blob, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("reading PE section %s: %w", SectionName, err)
	}
	// PE pads raw section data to the file alignment; the virtual size is
	// the real payload length.
	if sec.VirtualSize > 0 && int(sec.VirtualSize) < len(blob) {
		blob = blob[:sec.VirtualSize]
	}
	return blob, nil
}

func machoSection(data []byte) ([]byte, error) {
	f, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("malformed Mach-O file: %w", err)
	}
	defer f.Close()

	for _, sec := range f.Sections {
		if sec.Seg == machoSegment && sec.Name == SectionName {
			blob, err := sec.Data()
			if err != nil {
				return nil, fmt.Errorf("reading Mach-O section %s,%s: %w", machoSegment, SectionName, err)
			}
			return blob, nil
		}
	}
	return nil, ErrNoAuditData
}

// isMachO checks the thin Mach-O magic numbers in both byte orders. Fat
// (universal) binaries are not supported.
func isMachO(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	magic := binary.BigEndian.Uint32(data[:4])
	switch magic {
	case macho.Magic32, macho.Magic64:
		return true
	}
	magic = binary.LittleEndian.Uint32(data[:4])
	switch magic {
	case macho.Magic32, macho.Magic64:
		return true
	}
	return false
}
