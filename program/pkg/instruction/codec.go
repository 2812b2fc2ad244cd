package instruction

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrAccountsMismatch   = errors.New("instruction accounts mismatch")
	ErrMissingAccount     = errors.New("missing account")
	ErrMissingSigner      = errors.New("account must sign")
)

// Discriminator returns sha256("global:<name>")[:8].
func Discriminator(name string) [8]byte {
	h := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], h[:8])
	return d
}

// accountSpec describes one position in an instruction's account list.
// Fixed positions hold a well-known program and are filled in by the builder.
// They have no key pointer; the system program id is the zero key.
type accountSpec struct {
	name     string
	key      *solana.PublicKey
	writable bool
	signer   bool
	fixed    solana.PublicKey
}

func (s accountSpec) isFixed() bool { return s.key == nil }

func signer(name string, key *solana.PublicKey) accountSpec {
	return accountSpec{name: name, key: key, writable: true, signer: true}
}

func readonlySigner(name string, key *solana.PublicKey) accountSpec {
	return accountSpec{name: name, key: key, signer: true}
}

func writable(name string, key *solana.PublicKey) accountSpec {
	return accountSpec{name: name, key: key, writable: true}
}

func readonly(name string, key *solana.PublicKey) accountSpec {
	return accountSpec{name: name, key: key}
}

func program(name string, id solana.PublicKey) accountSpec {
	return accountSpec{name: name, fixed: id}
}

func validateSpecs(specs []accountSpec) error {
	for _, s := range specs {
		if s.isFixed() {
			continue
		}
		if s.key.IsZero() {
			return fmt.Errorf("%w: %s", ErrMissingAccount, s.name)
		}
	}
	return nil
}

func toMetas(specs []accountSpec) solana.AccountMetaSlice {
	metas := make(solana.AccountMetaSlice, 0, len(specs))
	for _, s := range specs {
		key := s.fixed
		if !s.isFixed() {
			key = *s.key
		}
		metas = append(metas, solana.NewAccountMeta(key, s.writable, s.signer))
	}
	return metas
}

func fromMetas(specs []accountSpec, metas []*solana.AccountMeta) error {
	if len(metas) != len(specs) {
		return fmt.Errorf("%w: want %d accounts, got %d", ErrAccountsMismatch, len(specs), len(metas))
	}
	for i, s := range specs {
		m := metas[i]
		if s.isFixed() {
			if !m.PublicKey.Equals(s.fixed) {
				return fmt.Errorf("%w: %s must be %s", ErrAccountsMismatch, s.name, s.fixed)
			}
			continue
		}
		if s.signer && !m.IsSigner {
			return fmt.Errorf("%w: %s", ErrMissingSigner, s.name)
		}
		*s.key = m.PublicKey
	}
	return nil
}

func encodeData(name string, args any) ([]byte, error) {
	disc := Discriminator(name)
	var buf bytes.Buffer
	buf.Write(disc[:])
	if args != nil {
		if err := bin.NewBorshEncoder(&buf).Encode(args); err != nil {
			return nil, fmt.Errorf("failed to encode %s args: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

func build(programID solana.PublicKey, name string, specs []accountSpec, args any) (solana.Instruction, error) {
	if programID.IsZero() {
		return nil, errors.New("program id is required")
	}
	if err := validateSpecs(specs); err != nil {
		return nil, fmt.Errorf("invalid %s accounts: %w", name, err)
	}
	data, err := encodeData(name, args)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, toMetas(specs), data), nil
}

// Instruction is a decoded program instruction.
type Instruction interface {
	Name() string
	specs() []accountSpec
	args() any
}

var decoders = map[[8]byte]func() Instruction{
	Discriminator(NameCreateRound):  func() Instruction { return &CreateRound{} },
	Discriminator(NameCreateVaults): func() Instruction { return &CreateVaults{} },
	Discriminator(NameStartRound):   func() Instruction { return &StartRound{} },
	Discriminator(NameCreateKey):    func() Instruction { return &CreateKey{} },
	Discriminator(NameBurnKey):      func() Instruction { return &BurnKey{} },
	Discriminator(NameFeeClaim):     func() Instruction { return &FeeClaim{} },
	Discriminator(NameUpdateRound):  func() Instruction { return &UpdateRound{} },
	Discriminator(NameWinnerClaim):  func() Instruction { return &WinnerClaim{} },
	Discriminator(NameTransferKey):  func() Instruction { return &TransferKey{} },
}

// Decode parses instruction data and accounts into a typed instruction.
func Decode(accounts []*solana.AccountMeta, data []byte) (Instruction, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: data too short (%d bytes)", ErrUnknownInstruction, len(data))
	}
	var disc [8]byte
	copy(disc[:], data[:8])
	newIx, ok := decoders[disc]
	if !ok {
		return nil, fmt.Errorf("%w: discriminator %x", ErrUnknownInstruction, disc)
	}
	ix := newIx()
	if args := ix.args(); args != nil {
		if err := bin.NewBorshDecoder(data[8:]).Decode(args); err != nil {
			return nil, fmt.Errorf("failed to decode %s args: %w", ix.Name(), err)
		}
	}
	if err := fromMetas(ix.specs(), accounts); err != nil {
		return nil, fmt.Errorf("failed to decode %s accounts: %w", ix.Name(), err)
	}
	return ix, nil
}

// DecodeInstruction decodes a solana.Instruction addressed to programID.
func DecodeInstruction(programID solana.PublicKey, ix solana.Instruction) (Instruction, error) {
	if !ix.ProgramID().Equals(programID) {
		return nil, fmt.Errorf("%w: program %s", ErrUnknownInstruction, ix.ProgramID())
	}
	data, err := ix.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read instruction data: %w", err)
	}
	return Decode(ix.Accounts(), data)
}

// Signers lists the accounts ix requires to sign.
func Signers(ix Instruction) []solana.PublicKey {
	var out []solana.PublicKey
	for _, s := range ix.specs() {
		if s.signer {
			out = append(out, *s.key)
		}
	}
	return out
}
