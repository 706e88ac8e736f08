package data

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
	"go.uber.org/multierr"
)

// SnapshotFileExt is the extension of snapshot files written by FileStore.
const SnapshotFileExt = ".vxsnap"

// snapshotMagic starts every snapshot file and is followed by a 32-byte BLAKE3 digest of the
// uncompressed CBOR and then the zstd payload.
var snapshotMagic = []byte("VXSNAP1\n")

const digestSize = 32

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("data: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("data: zstd decoder initialization failed: " + err.Error())
	}
}

// EncodeSnapshotFile produces the on-disk form of a snapshot.
func EncodeSnapshotFile(s *Snapshot) ([]byte, error) {
	raw, err := MarshalSnapshot(s)
	if err != nil {
		return nil, errors.Wrap(err, "encoding snapshot")
	}
	digest := blake3.Sum256(raw)
	out := make([]byte, 0, len(snapshotMagic)+digestSize+len(raw)/2)
	out = append(out, snapshotMagic...)
	out = append(out, digest[:]...)
	return zstdEncoder.EncodeAll(raw, out), nil
}

// DecodeSnapshotFile parses and verifies the on-disk form of a snapshot.
func DecodeSnapshotFile(b []byte) (*Snapshot, error) {
	if !bytes.HasPrefix(b, snapshotMagic) || len(b) < len(snapshotMagic)+digestSize {
		return nil, errors.Wrap(ErrCorruptSnapshot, "bad header")
	}
	b = b[len(snapshotMagic):]
	var want [digestSize]byte
	copy(want[:], b[:digestSize])
	raw, err := zstdDecoder.DecodeAll(b[digestSize:], nil)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "decompressing: %v", err)
	}
	if blake3.Sum256(raw) != want {
		return nil, errors.Wrap(ErrCorruptSnapshot, "digest mismatch")
	}
	s, err := UnmarshalSnapshot(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "decoding: %v", err)
	}
	return s, nil
}

// FileStore writes one file per snapshot into a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "creating snapshot directory %q", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Dir is the directory snapshots are written to.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// SnapshotFileName is the file a snapshot is stored under. Names sort by session then sequence.
func SnapshotFileName(s *Snapshot) string {
	return fmt.Sprintf("%s-%010d%s", s.SessionID, s.Sequence, SnapshotFileExt)
}

// Put writes the snapshot to a temporary file in the same directory, syncs it and renames it
// into place. Readers never see a partial file.
func (fs *FileStore) Put(ctx context.Context, s *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := EncodeSnapshotFile(s)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(fs.dir, SnapshotFileName(s)), payload)
}

func writeFileAtomic(path string, payload []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temporary snapshot file")
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			err = multierr.Combine(err, os.Remove(tmpPath))
		}
	}()

	if _, err := tmp.Write(payload); err != nil {
		return multierr.Combine(errors.Wrap(err, "writing temporary snapshot file"), tmp.Close())
	}
	if err := tmp.Sync(); err != nil {
		return multierr.Combine(errors.Wrap(err, "syncing temporary snapshot file"), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temporary snapshot file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, "renaming snapshot file into place")
	}

	//nolint:gosec
	if dir, dirErr := os.Open(filepath.Dir(path)); dirErr == nil {
		//nolint:errcheck
		dir.Sync()
		//nolint:errcheck
		dir.Close()
	}
	return nil
}

// List returns the snapshot file names in the directory, sorted.
func (fs *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), SnapshotFileExt) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Latest reads the most recently written snapshot in the directory. Ties on modification time
// go to the larger file name.
func (fs *FileStore) Latest(ctx context.Context) (*Snapshot, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, err
	}
	var (
		newest   string
		newestAt time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), SnapshotFileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		if newest == "" || info.ModTime().After(newestAt) ||
			(info.ModTime().Equal(newestAt) && e.Name() > newest) {
			newest, newestAt = e.Name(), info.ModTime()
		}
	}
	if newest == "" {
		return nil, ErrNoSnapshot
	}
	return ReadSnapshotFile(filepath.Join(fs.dir, newest))
}

// Close is a no-op.
func (fs *FileStore) Close() error {
	return nil
}

// ReadSnapshotFile reads and verifies a single snapshot file.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	//nolint:gosec
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := DecodeSnapshotFile(b)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	return s, nil
}
