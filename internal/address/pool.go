package address

import "encoding/binary"

var (
	ConfigPrefix = []byte("config")
	LPPrefix     = []byte("lp")
)

// ConfigSeeds returns the seeds of a pool config address, without the bump.
func ConfigSeeds(seed uint64) [][]byte {
	le := make([]byte, 8)
	binary.LittleEndian.PutUint64(le, seed)
	return [][]byte{ConfigPrefix, le}
}

// LPMintSeeds returns the seeds of a pool's LP mint address, without the bump.
func LPMintSeeds(config PublicKey) [][]byte {
	return [][]byte{LPPrefix, config.Bytes()}
}

// FindConfigAddress derives the config address for a pool seed.
func FindConfigAddress(programID PublicKey, seed uint64) (PublicKey, uint8, error) {
	return FindProgramAddress(ConfigSeeds(seed), programID)
}

// FindLPMintAddress derives the LP mint address for a pool config.
func FindLPMintAddress(programID, config PublicKey) (PublicKey, uint8, error) {
	return FindProgramAddress(LPMintSeeds(config), programID)
}

// ConfigAddress re-derives a config address from a stored bump.
func ConfigAddress(programID PublicKey, seed uint64, bump uint8) (PublicKey, error) {
	return CreateProgramAddress(append(ConfigSeeds(seed), []byte{bump}), programID)
}

// LPMintAddress re-derives an LP mint address from a stored bump.
func LPMintAddress(programID, config PublicKey, bump uint8) (PublicKey, error) {
	return CreateProgramAddress(append(LPMintSeeds(config), []byte{bump}), programID)
}
