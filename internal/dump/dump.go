// Package dump writes a crash dump when the merge driver hits an internal
// invariant violation, capturing enough state (inputs, cursor backlog
// sizes, the reconciled schema, the error) to diagnose the failure after
// the fact.
// Dumps live under dump_dir/<dump_uuid>/.
package dump

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tablestream/csvmerge3/internal/merge3"
)

// Metadata describes one crash dump.
type Metadata struct {
	UUID       string            `json:"uuid"`
	CreatedAt  time.Time         `json:"created_at"`
	Error      string            `json:"error"`
	PathLCA    string            `json:"path_lca"`
	PathA      string            `json:"path_a"`
	PathB      string            `json:"path_b"`
	KeyColumn  string            `json:"key_column"`
	Checksums  map[string]string `json:"checksums"`
	BacklogLCA int               `json:"backlog_lca,omitempty"`
	BacklogA   int               `json:"backlog_a,omitempty"`
	BacklogB   int               `json:"backlog_b,omitempty"`
	Schema     []string          `json:"schema,omitempty"`
}

// Dir returns the canonical directory for a dump.
// Path: dump_dir/<dump_uuid>
func Dir(dumpDir, dumpUUID string) string {
	return filepath.Join(dumpDir, dumpUUID)
}

// Write copies pathLCA/pathA/pathB into a new dump directory under dumpDir
// alongside a metadata.json describing the failure, and returns the dump's
// UUID.
func Write(dumpDir string, mergeErr error, pathLCA, pathA, pathB, keyColumn string) (string, error) {
	dumpUUID := uuid.New().String()
	dir := Dir(dumpDir, dumpUUID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create dump directory: %w", err)
	}

	checksums := map[string]string{}
	for name, src := range map[string]string{"lca.csv": pathLCA, "a.csv": pathA, "b.csv": pathB} {
		sum, err := copyWithChecksum(src, filepath.Join(dir, name))
		if err != nil {
			return dumpUUID, fmt.Errorf("copy %s into dump: %w", name, err)
		}
		checksums[name] = sum
	}

	meta := Metadata{
		UUID:      dumpUUID,
		CreatedAt: time.Now().UTC(),
		Error:     mergeErr.Error(),
		PathLCA:   pathLCA,
		PathA:     pathA,
		PathB:     pathB,
		KeyColumn: keyColumn,
		Checksums: checksums,
	}
	if inv, ok := mergeErr.(*merge3.InternalInvariantError); ok {
		meta.BacklogLCA = inv.BacklogLCA
		meta.BacklogA = inv.BacklogA
		meta.BacklogB = inv.BacklogB
		meta.Schema = inv.Schema
	}

	f, err := os.Create(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return dumpUUID, fmt.Errorf("write dump metadata: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return dumpUUID, fmt.Errorf("encode dump metadata: %w", err)
	}

	return dumpUUID, nil
}

func copyWithChecksum(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Read loads the metadata for a previously written dump.
func Read(dumpDir, dumpUUID string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(Dir(dumpDir, dumpUUID), "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("read dump metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse dump metadata: %w", err)
	}
	return &meta, nil
}
