package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyError describes one problem found at a specific line.
type VerifyError struct {
	Line int
	Kind string // "parse", "hash_mismatch", "chain_break"
	Msg  string
}

func (v VerifyError) Error() string { return fmt.Sprintf("line %d: %s: %s", v.Line, v.Kind, v.Msg) }

// VerifyResult reports the outcome of a linear chain verification.
type VerifyResult struct {
	EntriesChecked int
	Errors         []VerifyError
}

// Verify reads path linearly, recomputing every hash and checking that
// each entry's prev_hash equals its predecessor's hash, per §4.9/§8.
func Verify(path string) (VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var res VerifyResult
	prevHash := genesisHash
	line := 0
	for sc.Scan() {
		line++
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			res.Errors = append(res.Errors, VerifyError{Line: line, Kind: "parse", Msg: err.Error()})
			continue
		}
		res.EntriesChecked++

		if e.PrevHash != prevHash {
			res.Errors = append(res.Errors, VerifyError{
				Line: line, Kind: "chain_break",
				Msg: fmt.Sprintf("prev_hash %q does not match predecessor's hash %q", e.PrevHash, prevHash),
			})
		}
		if got := computeHash(e); got != e.Hash {
			res.Errors = append(res.Errors, VerifyError{
				Line: line, Kind: "hash_mismatch",
				Msg: fmt.Sprintf("recomputed hash %q does not match stored hash %q", got, e.Hash),
			})
		}
		prevHash = e.Hash
	}
	if err := sc.Err(); err != nil {
		return res, err
	}
	return res, nil
}
