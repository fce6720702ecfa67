package repository

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Vector log layout: a fixed header (magic, format version, vocabulary
// fingerprint, dimension) followed by (id, vector) records. Records are
// appended on insert and the file is fsynced before the insert is
// acknowledged; removal compacts into a temp file swapped in by rename.
const (
	vectorLogMagic   = "PXVL"
	vectorLogVersion = 1
)

type vectorLog struct {
	path        string
	fingerprint string
	dim         int

	mu sync.Mutex
	f  *os.File // append handle
}

// openVectorLog opens or creates the vector log at path. A new file gets a
// header for the given fingerprint and dimension; an existing file's header
// must match both or the log is refused with *CorruptError.
func openVectorLog(path, fingerprint string, dim int) (*vectorLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create vector log dir: %w", err)
		}
	}
	l := &vectorLog{path: path, fingerprint: fingerprint, dim: dim}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err) || (err == nil && info.Size() == 0):
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
		if err != nil {
			return nil, fmt.Errorf("create vector log: %w", err)
		}
		if err := l.writeHeader(f); err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sync vector log header: %w", err)
		}
		l.f = f
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("stat vector log: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open vector log: %w", err)
	}
	if err := l.checkHeader(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seek vector log: %w", err)
	}
	l.f = f
	return l, nil
}

func (l *vectorLog) writeHeader(w io.Writer) error {
	if _, err := w.Write([]byte(vectorLogMagic)); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(vectorLogVersion)); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	fp := []byte(l.fingerprint)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(fp))); err != nil {
		return fmt.Errorf("write fingerprint length: %w", err)
	}
	if _, err := w.Write(fp); err != nil {
		return fmt.Errorf("write fingerprint: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(l.dim)); err != nil {
		return fmt.Errorf("write dimension: %w", err)
	}
	return nil
}

func (l *vectorLog) checkHeader(r io.Reader) error {
	magic := make([]byte, len(vectorLogMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return corruptf("vector log header unreadable: %v", err)
	}
	if string(magic) != vectorLogMagic {
		return corruptf("vector log has wrong magic %q", magic)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return corruptf("vector log version unreadable: %v", err)
	}
	if version != vectorLogVersion {
		return corruptf("vector log format version %d, expected %d", version, vectorLogVersion)
	}
	var fpLen uint32
	if err := binary.Read(r, binary.LittleEndian, &fpLen); err != nil {
		return corruptf("vector log fingerprint length unreadable: %v", err)
	}
	fp := make([]byte, fpLen)
	if _, err := io.ReadFull(r, fp); err != nil {
		return corruptf("vector log fingerprint unreadable: %v", err)
	}
	if string(fp) != l.fingerprint {
		return corruptf("vector log was built with vocabulary %.12s…, loaded vocabulary is %.12s…", fp, l.fingerprint)
	}
	var dim uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return corruptf("vector log dimension unreadable: %v", err)
	}
	if int(dim) != l.dim {
		return corruptf("vector log dimension %d, vocabulary size %d", dim, l.dim)
	}
	return nil
}

// Append durably writes one (id, vector) record. The fsync completes before
// Append returns, so acknowledged inserts survive a crash.
func (l *vectorLog) Append(id string, vec []float64) error {
	if len(vec) != l.dim {
		return fmt.Errorf("vector dimension %d, log expects %d", len(vec), l.dim)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := writeRecord(l.f, id, vec); err != nil {
		return err
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync vector log: %w", err)
	}
	return nil
}

// Load reads every record from the log. Duplicate IDs are refused: the log
// only ever receives one record per case.
func (l *vectorLog) Load() (map[string][]float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open vector log: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	if err := l.checkHeader(r); err != nil {
		return nil, err
	}

	vectors := make(map[string][]float64)
	for {
		id, vec, err := readRecord(r, l.dim)
		if err == io.EOF {
			return vectors, nil
		}
		if err != nil {
			return nil, corruptf("vector log record unreadable: %v", err)
		}
		if _, dup := vectors[id]; dup {
			return nil, corruptf("vector log has duplicate record for %s", id)
		}
		vectors[id] = vec
	}
}

// Rewrite replaces the log contents with the given vectors, writing to a
// temp file and renaming it over the old log so readers never see a partial
// file. Used for compaction after Remove.
func (l *vectorLog) Rewrite(vectors map[string][]float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tmp := l.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp vector log: %w", err)
	}
	if err := l.writeHeader(f); err != nil {
		_ = f.Close()
		return err
	}
	ids := make([]string, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := writeRecord(f, id, vectors[id]); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync temp vector log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp vector log: %w", err)
	}

	if l.f != nil {
		_ = l.f.Close()
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("swap vector log: %w", err)
	}
	nf, err := os.OpenFile(l.path, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("reopen vector log: %w", err)
	}
	l.f = nf
	return nil
}

func (l *vectorLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f != nil {
		err := l.f.Close()
		l.f = nil
		return err
	}
	return nil
}

func writeRecord(w io.Writer, id string, vec []float64) error {
	idBytes := []byte(id)
	if err := binary.Write(w, binary.LittleEndian, uint32(len(idBytes))); err != nil {
		return fmt.Errorf("write id length: %w", err)
	}
	if _, err := w.Write(idBytes); err != nil {
		return fmt.Errorf("write id: %w", err)
	}
	if _, err := w.Write(float64SliceToBytes(vec)); err != nil {
		return fmt.Errorf("write vector: %w", err)
	}
	return nil
}

func readRecord(r io.Reader, dim int) (string, []float64, error) {
	var idLen uint32
	if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
		return "", nil, err
	}
	idBytes := make([]byte, idLen)
	if _, err := io.ReadFull(r, idBytes); err != nil {
		return "", nil, err
	}
	buf := make([]byte, dim*8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", nil, err
	}
	return string(idBytes), bytesToFloat64Slice(buf), nil
}

func float64SliceToBytes(s []float64) []byte {
	const size = 8
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint64(out[i*size:(i+1)*size], math.Float64bits(v))
	}
	return out
}

func bytesToFloat64Slice(b []byte) []float64 {
	const size = 8
	out := make([]float64, len(b)/size)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*size : (i+1)*size]))
	}
	return out
}
