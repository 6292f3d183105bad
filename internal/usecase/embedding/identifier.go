package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Identifier names an embedder configuration as provider/model@dims. When either
// instruction is set, a short hash of both is appended so that changing a prompt
// invalidates previously built indexes.
func Identifier(provider, model string, dims int, documentInstruction, queryInstruction string) string {
	id := fmt.Sprintf("%s/%s@%d", provider, model, dims)
	if documentInstruction == "" && queryInstruction == "" {
		return id
	}
	sum := sha256.Sum256([]byte(documentInstruction + "\x00" + queryInstruction))
	return id + "+instr:" + hex.EncodeToString(sum[:4])
}
