package audit

import (
	"crypto/sha256"
	"fmt"
)

// checkResultHash is spec.md §4.7 check 3: resultLeafHash must equal
// SHA-256("RESULT:<finalScore>:<coinsCollected>:<outcomeCode>:<raceTimeMs>"),
// using real SHA-256 (unlike the Merkle leaf formula's simpleHashHex).
func checkResultHash(d *decoded, v *Verdict) {
	if d.final == nil {
		return
	}

	fp := d.final.payload
	material := fmt.Sprintf("RESULT:%d:%d:%d:%d", fp.FinalScore, fp.CoinsCollected, uint8(fp.OutcomeCode), fp.RaceTimeMs)
	want := sha256.Sum256([]byte(material))

	if want != fp.ResultLeafHash {
		v.fail("final result hash does not match finalScore/coinsCollected/outcomeCode/raceTimeMs")
	}
}
