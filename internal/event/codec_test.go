package event

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"mpsol_restaking/pkg/quant"
)

func TestCodec_TicketClaim(t *testing.T) {
	caller := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	id := uuid.New()

	cmd := &TicketClaimCommand{
		BaseCommand: BaseCommand{Caller: caller},
		TicketID:    id,
		LstMint:     mint,
		SolAmount:   5_000_000,
		FreshPrice:  &PriceObservation{Price: quant.PriceOne, ObservedAt: 1_700_000_000},
	}
	cmd.Stamp(12, 1_700_000_100)

	payload, err := Encode(cmd)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(cmd.GetType(), payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	got, ok := decoded.(*TicketClaimCommand)
	if !ok {
		t.Fatalf("Expected *TicketClaimCommand, got %T", decoded)
	}
	if got.GetSeq() != 12 || got.GetTs() != 1_700_000_100 {
		t.Errorf("Header not preserved: seq=%d ts=%d", got.GetSeq(), got.GetTs())
	}
	if !got.GetCaller().Equals(caller) || !got.LstMint.Equals(mint) || got.TicketID != id {
		t.Error("Identifiers not preserved")
	}
	if got.FreshPrice == nil || got.FreshPrice.Price != quant.PriceOne {
		t.Errorf("Fresh price not preserved: %+v", got.FreshPrice)
	}
}

func TestCodec_UnknownType(t *testing.T) {
	if _, err := Decode(Type("bogus"), []byte("{}")); err == nil {
		t.Error("Expected error for unknown type")
	}
	if _, err := Decode(TypeStake, []byte("not json")); err == nil {
		t.Error("Expected error for malformed payload")
	}
}
