package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// collectionABI covers the subset of the collection contract the service calls.
const collectionABI = `[
	{"type":"function","name":"nextTokenIdToMint","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"authToken","type":"string"},{"name":"uri","type":"string"}],"outputs":[]}
]`

var collection = mustParseABI(collectionABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
