package vectorstore

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
)

// pointNamespace scopes sentence point IDs.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://tigrinya.news/vector-points"))

// PointID is stable across runs, so re-ingesting a sentence overwrites its point.
func PointID(pdfFilename string, sentenceIndex int) uuid.UUID {
	return uuid.NewSHA1(pointNamespace, []byte(pdfFilename+":"+strconv.Itoa(sentenceIndex)))
}

func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
