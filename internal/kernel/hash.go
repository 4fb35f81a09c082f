// Package kernel implements the identifier and fingerprint primitives that
// every other component treats as ground truth: file hashes, AST
// fingerprints, symbol IDs, and card ETags (spec §4.A). All outputs are
// lowercase hex and deterministic across runs and architectures.
package kernel

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// FileHash returns a stable hash over normalized file bytes. Two files with
// identical content hash identically regardless of path.
func FileHash(content []byte) string {
	return hashHex(content)
}

func hashHex(b []byte) string {
	h := xxhash.Sum64(b)
	return strconv.FormatUint(h, 16)
}

// ShapeSpec is the fixed-order set of fields an AST fingerprint is built
// from (spec §4.A): node type, name, parameter count, async/static flags,
// visibility, presence of a return-type annotation, and a recursive
// subtree-shape hash that an adapter computes by walking its own parse
// tree (kernel has no tree-sitter dependency).
type ShapeSpec struct {
	NodeType       string
	Name           string
	ParamCount     int
	IsAsync        bool
	IsStatic       bool
	Visibility     string
	HasReturnType  bool
	SubtreeShape   string // output of HashShapeTokens over the node's body
}

// ASTFingerprint computes the fixed-order concatenation described in
// spec §4.A and hashes it. Field order is part of the spec and must not
// change, or fingerprints computed by different versions would silently
// diverge.
func ASTFingerprint(s ShapeSpec) string {
	var b strings.Builder
	b.WriteString(s.NodeType)
	b.WriteByte('\x00')
	b.WriteString(s.Name)
	b.WriteByte('\x00')
	b.WriteString(strconv.Itoa(s.ParamCount))
	b.WriteByte('\x00')
	b.WriteString(boolFlag(s.IsAsync))
	b.WriteByte('\x00')
	b.WriteString(boolFlag(s.IsStatic))
	b.WriteByte('\x00')
	b.WriteString(s.Visibility)
	b.WriteByte('\x00')
	b.WriteString(boolFlag(s.HasReturnType))
	b.WriteByte('\x00')
	b.WriteString(s.SubtreeShape)
	return hashHex([]byte(b.String()))
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// HashShapeTokens hashes a depth-first sequence of structural node-type
// tokens, ignoring literal token text and comments (the caller is
// responsible for excluding them before calling this). This captures
// structural identity while being insensitive to identifier text within
// the body, whitespace, and comments.
func HashShapeTokens(tokens []string) string {
	h := xxhash.New()
	var lenBuf [8]byte
	for _, t := range tokens {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(t)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write([]byte(t))
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// SymbolID computes the content-addressed identifier
// H(repoId, relPath, kind, name, astFingerprint). Identical source yields
// an identical SymbolID across runs and machines (spec §3 invariant).
func SymbolID(repoID, relPath, kind, name, astFingerprint string) string {
	var b strings.Builder
	b.WriteString(repoID)
	b.WriteByte('\x00')
	b.WriteString(relPath)
	b.WriteByte('\x00')
	b.WriteString(kind)
	b.WriteByte('\x00')
	b.WriteString(name)
	b.WriteByte('\x00')
	b.WriteString(astFingerprint)
	return hashHex([]byte(b.String()))
}

// CardETag hashes a canonicalized card payload, keyed by symbol ID and
// ledger version so two different symbols (or the same symbol at two
// versions) never collide.
func CardETag(symbolID, versionID string, canonicalPayload []byte) string {
	var b strings.Builder
	b.WriteString(symbolID)
	b.WriteByte('\x00')
	b.WriteString(versionID)
	b.WriteByte('\x00')
	b.Write(canonicalPayload)
	return hashHex([]byte(b.String()))
}
