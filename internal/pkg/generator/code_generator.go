package generator

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

type CodeGenerator struct{}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{}
}

func (g *CodeGenerator) GenerateEventID() string {
	return uuid.NewString()
}

func (g *CodeGenerator) GenerateReceiptID(starID int64) (string, error) {
	randomBytes := make([]byte, 8)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", err
	}

	randomHex := hex.EncodeToString(randomBytes)

	return fmt.Sprintf("RCP-%d-%s", starID, randomHex), nil
}
