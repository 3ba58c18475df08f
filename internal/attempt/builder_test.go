package attempt

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"solana-sniper/internal/blockhash"
	"solana-sniper/internal/domain"
)

var computeBudgetProgram = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

func newSigner(t *testing.T) *KeypairSigner {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	return NewKeypairSigner(key)
}

func memoPrefix(payer solana.PublicKey) []solana.Instruction {
	memo := solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
	return []solana.Instruction{
		solana.NewInstruction(memo, solana.AccountMetaSlice{solana.NewAccountMeta(payer, true, true)}, []byte("buy")),
	}
}

func freshHandle(b byte) *blockhash.Handle {
	return blockhash.NewHandle(solana.Hash{b, 0xEE}, 100, time.Now())
}

func TestBuild_AppendsComputeUnitPrice(t *testing.T) {
	signer := newSigner(t)
	prefix := memoPrefix(signer.PublicKey())
	v := domain.FeeVariant{Index: 2, MicroLamports: 10002}

	a, err := Build(prefix, v, freshHandle(1), signer)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	msg := a.Transaction().Message
	if len(msg.Instructions) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(msg.Instructions))
	}
	last := msg.Instructions[1]
	program, err := msg.ResolveProgramIDIndex(last.ProgramIDIndex)
	if err != nil {
		t.Fatalf("ResolveProgramIDIndex: %v", err)
	}
	if !program.Equals(computeBudgetProgram) {
		t.Errorf("expected compute budget program, got %s", program)
	}

	data := []byte(last.Data)
	if len(data) != 9 || data[0] != 3 {
		t.Fatalf("expected SetComputeUnitPrice data, got %v", data)
	}
	if got := binary.LittleEndian.Uint64(data[1:]); got != 10002 {
		t.Errorf("expected price 10002, got %d", got)
	}

	if !msg.AccountKeys[0].Equals(signer.PublicKey()) {
		t.Errorf("expected payer first, got %s", msg.AccountKeys[0])
	}
	if msg.RecentBlockhash != (solana.Hash{1, 0xEE}) {
		t.Errorf("unexpected blockhash %s", msg.RecentBlockhash)
	}
	if len(prefix) != 1 {
		t.Errorf("prefix was modified: %d instructions", len(prefix))
	}
}

func TestBuild_SignatureVerifies(t *testing.T) {
	signer := newSigner(t)
	a, err := Build(memoPrefix(signer.PublicKey()), domain.FeeVariant{MicroLamports: 1}, freshHandle(2), signer)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	message, err := a.Transaction().Message.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if !a.Signature().Verify(signer.PublicKey(), message) {
		t.Error("signature does not verify against payer")
	}

	wire, err := base64.StdEncoding.DecodeString(a.Encode())
	if err != nil {
		t.Fatalf("decode wire: %v", err)
	}
	// Wire form: compact-u16 signature count, then the 64-byte signatures.
	if len(wire) < 65 || wire[0] != 1 {
		t.Fatalf("unexpected wire prefix %v", wire[:1])
	}
	if solana.SignatureFromBytes(wire[1:65]) != a.Signature() {
		t.Error("wire signature mismatch")
	}
}

func TestBuild_HandleReuseRejected(t *testing.T) {
	signer := newSigner(t)
	h := freshHandle(3)

	if _, err := Build(nil, domain.FeeVariant{MicroLamports: 1}, h, signer); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, err := Build(nil, domain.FeeVariant{MicroLamports: 2}, h, signer); !errors.Is(err, blockhash.ErrHandleReused) {
		t.Errorf("expected ErrHandleReused, got %v", err)
	}
}

func TestBuild_DistinctVariantsDistinctSignatures(t *testing.T) {
	signer := newSigner(t)
	prefix := memoPrefix(signer.PublicKey())

	seen := make(map[solana.Signature]bool)
	for i, v := range domain.GenerateFeeVariants(4, 10000) {
		a, err := Build(prefix, v, freshHandle(byte(10+i)), signer)
		if err != nil {
			t.Fatalf("Build %d: %v", i, err)
		}
		if seen[a.Signature()] {
			t.Errorf("variant %d reused a signature", i)
		}
		seen[a.Signature()] = true
	}
}

func TestBuild_NoPayer(t *testing.T) {
	if _, err := Build(nil, domain.FeeVariant{}, freshHandle(4), nil); !errors.Is(err, ErrNoPayer) {
		t.Errorf("expected ErrNoPayer, got %v", err)
	}
}

func TestKeypairFromBase58(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}

	signer, err := KeypairFromBase58(key.String())
	if err != nil {
		t.Fatalf("KeypairFromBase58: %v", err)
	}
	if !signer.PublicKey().Equals(key.PublicKey()) {
		t.Error("public key mismatch")
	}

	if _, err := KeypairFromBase58("tooShort"); err == nil {
		t.Error("expected error for short key")
	}
}
