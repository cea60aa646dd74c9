package p2p

import (
	"testing"

	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

func TestBidRoundTrip(t *testing.T) {
	bid := &types.Bid{
		Commitment:       types.HashFromBytes([]byte("c")),
		Nullifier:        types.HashFromBytes([]byte("n")),
		MemberCommitment: types.HashFromBytes([]byte("m")),
		CircleID:         types.HashFromBytes([]byte("circle")),
		Round:            3,
		Timestamp:        1000,
		RangeProof:       []byte("range"),
		MembershipProof:  []byte("member"),
		FairnessProof:    []byte("fair"),
	}

	decoded, err := DecodeBid(EncodeBid(bid))
	if err != nil {
		t.Fatalf("DecodeBid: %v", err)
	}
	if decoded.Commitment != bid.Commitment || decoded.Round != bid.Round || string(decoded.RangeProof) != "range" {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
}

func TestVoteRoundTrip(t *testing.T) {
	vote := &types.Vote{
		VoteCommit:  types.HashFromBytes([]byte("vc")),
		Nullifier:   types.HashFromBytes([]byte("vn")),
		ProposalID:  types.HashFromBytes([]byte("p")),
		TrustWeight: 750,
		Choice:      types.VoteYes,
		Timestamp:   42,
	}

	decoded, err := DecodeVote(EncodeVote(vote))
	if err != nil {
		t.Fatalf("DecodeVote: %v", err)
	}
	if decoded.TrustWeight != 750 || decoded.Choice != types.VoteYes {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
}

func TestMixRoundTrip(t *testing.T) {
	mix := &types.Mix{
		MixID:            types.HashFromBytes([]byte("mix")),
		InputCommits:     []types.Hash{types.HashFromBytes([]byte("i1")), types.HashFromBytes([]byte("i2"))},
		OutputCommits:    []types.Hash{types.HashFromBytes([]byte("o1"))},
		Nullifiers:       []types.Hash{types.HashFromBytes([]byte("n1"))},
		ZKProof:          []byte("proof"),
		AnonymitySetSize: 2,
		Fee:              10,
		PrivacyScore:     80,
	}

	decoded, err := DecodeMix(EncodeMix(mix))
	if err != nil {
		t.Fatalf("DecodeMix: %v", err)
	}
	if len(decoded.InputCommits) != 2 || decoded.Fee != 10 || decoded.PrivacyScore != 80 {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
}

func TestBridgeTransferRoundTrip(t *testing.T) {
	transfer := &types.CrossChainTransfer{
		TransferID:      types.HashFromBytes([]byte("transfer")),
		Source:          types.ChainMidnight,
		Target:          types.ChainID("ethereum"),
		Amount:          500,
		RecipientCommit: types.HashFromBytes([]byte("recipient")),
		Nullifier:       types.HashFromBytes([]byte("null")),
		ZKProof:         []byte("proof"),
		Status:          types.TransferConfirmed,
		MixingDelay:     30,
		EstimatedETA:    120,
		CreatedAt:       999,
	}

	decoded, err := DecodeBridgeTransfer(EncodeBridgeTransfer(transfer))
	if err != nil {
		t.Fatalf("DecodeBridgeTransfer: %v", err)
	}
	if decoded.Source != transfer.Source || decoded.Target != transfer.Target || decoded.Amount != transfer.Amount {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
	if decoded.Status != transfer.Status || decoded.MixingDelay != 30 || string(decoded.ZKProof) != "proof" {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	status := &StatusMessage{Version: 1, NetworkID: 7, PeerCount: 12}
	decoded, err := DecodeStatus(EncodeStatus(status))
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if *decoded != *status {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
}
