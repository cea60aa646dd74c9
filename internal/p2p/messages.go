// Package p2p provides message serialization for network communication.
package p2p

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

// Message types carried over the gossip topics.
const (
	MsgTypeBid             uint8 = 0x01
	MsgTypeVote            uint8 = 0x02
	MsgTypeMixBatch        uint8 = 0x03
	MsgTypeBridgeTransfer  uint8 = 0x04
	MsgTypeStatus          uint8 = 0x20
	MsgTypePing            uint8 = 0x30
	MsgTypePong            uint8 = 0x31
)

// Message errors
var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooLarge    = errors.New("message too large")
	ErrMessageTooShort    = errors.New("message too short")
)

// MaxMessageSize is the maximum size of a network message.
const MaxMessageSize = 4 * 1024 * 1024 // 4 MB

// Message is the length-prefixed envelope every gossip payload travels in.
type Message struct {
	Type    uint8
	Payload []byte
}

// StatusMessage exchanges node status information during handshake.
type StatusMessage struct {
	Version   uint32
	NetworkID uint32
	PeerCount uint32
}

// Encode serializes a message for network transmission.
func (m *Message) Encode(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, m.Type); err != nil {
		return err
	}
	payloadLen := uint32(len(m.Payload))
	if err := binary.Write(w, binary.BigEndian, payloadLen); err != nil {
		return err
	}
	_, err := w.Write(m.Payload)
	return err
}

// Decode deserializes a message from network data.
func (m *Message) Decode(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &m.Type); err != nil {
		return err
	}
	var payloadLen uint32
	if err := binary.Read(r, binary.BigEndian, &payloadLen); err != nil {
		return err
	}
	if payloadLen > MaxMessageSize {
		return ErrMessageTooLarge
	}
	m.Payload = make([]byte, payloadLen)
	_, err := io.ReadFull(r, m.Payload)
	return err
}

// EncodeBid serializes a sealed bid for gossip broadcast.
func EncodeBid(bid *types.Bid) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, bid.Commitment[:]...)
	buf = append(buf, bid.Nullifier[:]...)
	buf = append(buf, bid.MemberCommitment[:]...)
	buf = append(buf, bid.CircleID[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(bid.Round))
	buf = binary.BigEndian.AppendUint64(buf, bid.Timestamp)
	buf = appendLenPrefixed(buf, bid.RangeProof)
	buf = appendLenPrefixed(buf, bid.MembershipProof)
	buf = appendLenPrefixed(buf, bid.FairnessProof)
	return buf
}

// DecodeBid deserializes a sealed bid received over gossip.
func DecodeBid(data []byte) (*types.Bid, error) {
	const fixed = types.HashSize*4 + 4 + 8
	if len(data) < fixed {
		return nil, ErrMessageTooShort
	}
	bid := &types.Bid{}
	off := 0
	off = copyHash(&bid.Commitment, data, off)
	off = copyHash(&bid.Nullifier, data, off)
	off = copyHash(&bid.MemberCommitment, data, off)
	off = copyHash(&bid.CircleID, data, off)
	bid.Round = int(binary.BigEndian.Uint32(data[off:]))
	off += 4
	bid.Timestamp = binary.BigEndian.Uint64(data[off:])
	off += 8

	var err error
	if bid.RangeProof, off, err = readLenPrefixed(data, off); err != nil {
		return nil, err
	}
	if bid.MembershipProof, off, err = readLenPrefixed(data, off); err != nil {
		return nil, err
	}
	if bid.FairnessProof, _, err = readLenPrefixed(data, off); err != nil {
		return nil, err
	}
	return bid, nil
}

// EncodeVote serializes an anonymous ballot for gossip broadcast.
func EncodeVote(vote *types.Vote) []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, vote.VoteCommit[:]...)
	buf = append(buf, vote.Nullifier[:]...)
	buf = append(buf, vote.ProposalID[:]...)
	buf = binary.BigEndian.AppendUint32(buf, vote.TrustWeight)
	buf = append(buf, byte(vote.Choice))
	buf = binary.BigEndian.AppendUint64(buf, vote.Timestamp)
	return buf
}

// DecodeVote deserializes an anonymous ballot received over gossip.
func DecodeVote(data []byte) (*types.Vote, error) {
	const want = types.HashSize*3 + 4 + 1 + 8
	if len(data) < want {
		return nil, ErrMessageTooShort
	}
	v := &types.Vote{}
	off := 0
	off = copyHash(&v.VoteCommit, data, off)
	off = copyHash(&v.Nullifier, data, off)
	off = copyHash(&v.ProposalID, data, off)
	v.TrustWeight = binary.BigEndian.Uint32(data[off:])
	off += 4
	v.Choice = types.VoteChoice(data[off])
	off++
	v.Timestamp = binary.BigEndian.Uint64(data[off:])
	return v, nil
}

// EncodeMix serializes a mixer batch announcement for gossip broadcast.
func EncodeMix(mix *types.Mix) []byte {
	buf := make([]byte, 0, 512)
	buf = append(buf, mix.MixID[:]...)
	buf = appendHashList(buf, mix.InputCommits)
	buf = appendHashList(buf, mix.OutputCommits)
	buf = appendHashList(buf, mix.Nullifiers)
	buf = appendLenPrefixed(buf, mix.ZKProof)
	buf = binary.BigEndian.AppendUint32(buf, uint32(mix.AnonymitySetSize))
	buf = binary.BigEndian.AppendUint64(buf, mix.Fee)
	buf = binary.BigEndian.AppendUint32(buf, uint32(mix.PrivacyScore))
	return buf
}

// DecodeMix deserializes a mixer batch announcement received over gossip.
func DecodeMix(data []byte) (*types.Mix, error) {
	if len(data) < types.HashSize {
		return nil, ErrMessageTooShort
	}
	mix := &types.Mix{}
	off := 0
	off = copyHash(&mix.MixID, data, off)

	var err error
	if mix.InputCommits, off, err = readHashList(data, off); err != nil {
		return nil, err
	}
	if mix.OutputCommits, off, err = readHashList(data, off); err != nil {
		return nil, err
	}
	if mix.Nullifiers, off, err = readHashList(data, off); err != nil {
		return nil, err
	}
	if mix.ZKProof, off, err = readLenPrefixed(data, off); err != nil {
		return nil, err
	}
	if len(data) < off+12 {
		return nil, ErrMessageTooShort
	}
	mix.AnonymitySetSize = int(binary.BigEndian.Uint32(data[off:]))
	off += 4
	mix.Fee = binary.BigEndian.Uint64(data[off:])
	off += 8
	mix.PrivacyScore = int(binary.BigEndian.Uint32(data[off:]))
	return mix, nil
}

// EncodeBridgeTransfer serializes a cross-chain transfer event for gossip.
func EncodeBridgeTransfer(t *types.CrossChainTransfer) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, t.TransferID[:]...)
	buf = appendLenPrefixed(buf, []byte(t.Source))
	buf = appendLenPrefixed(buf, []byte(t.Target))
	buf = binary.BigEndian.AppendUint64(buf, t.Amount)
	buf = append(buf, t.RecipientCommit[:]...)
	buf = append(buf, t.Nullifier[:]...)
	buf = appendLenPrefixed(buf, t.ZKProof)
	buf = append(buf, byte(t.Status))
	buf = binary.BigEndian.AppendUint64(buf, t.MixingDelay)
	buf = binary.BigEndian.AppendUint64(buf, t.EstimatedETA)
	buf = binary.BigEndian.AppendUint64(buf, t.CreatedAt)
	return buf
}

// DecodeBridgeTransfer deserializes a cross-chain transfer event received
// over gossip.
func DecodeBridgeTransfer(data []byte) (*types.CrossChainTransfer, error) {
	if len(data) < types.HashSize {
		return nil, ErrMessageTooShort
	}
	t := &types.CrossChainTransfer{}
	off := 0
	off = copyHash(&t.TransferID, data, off)

	var err error
	var source, target []byte
	if source, off, err = readLenPrefixed(data, off); err != nil {
		return nil, err
	}
	t.Source = types.ChainID(source)
	if target, off, err = readLenPrefixed(data, off); err != nil {
		return nil, err
	}
	t.Target = types.ChainID(target)

	if len(data) < off+8 {
		return nil, ErrMessageTooShort
	}
	t.Amount = binary.BigEndian.Uint64(data[off:])
	off += 8

	if len(data) < off+types.HashSize*2 {
		return nil, ErrMessageTooShort
	}
	off = copyHash(&t.RecipientCommit, data, off)
	off = copyHash(&t.Nullifier, data, off)

	if t.ZKProof, off, err = readLenPrefixed(data, off); err != nil {
		return nil, err
	}

	if len(data) < off+1+8+8+8 {
		return nil, ErrMessageTooShort
	}
	t.Status = types.TransferStatus(data[off])
	off++
	t.MixingDelay = binary.BigEndian.Uint64(data[off:])
	off += 8
	t.EstimatedETA = binary.BigEndian.Uint64(data[off:])
	off += 8
	t.CreatedAt = binary.BigEndian.Uint64(data[off:])
	return t, nil
}

// EncodeStatus serializes a status handshake message.
func EncodeStatus(status *StatusMessage) []byte {
	buf := make([]byte, 0, 12)
	buf = binary.BigEndian.AppendUint32(buf, status.Version)
	buf = binary.BigEndian.AppendUint32(buf, status.NetworkID)
	buf = binary.BigEndian.AppendUint32(buf, status.PeerCount)
	return buf
}

// DecodeStatus deserializes a status handshake message.
func DecodeStatus(data []byte) (*StatusMessage, error) {
	if len(data) < 12 {
		return nil, ErrMessageTooShort
	}
	return &StatusMessage{
		Version:   binary.BigEndian.Uint32(data[0:4]),
		NetworkID: binary.BigEndian.Uint32(data[4:8]),
		PeerCount: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

func copyHash(dst *types.Hash, data []byte, off int) int {
	copy(dst[:], data[off:off+types.HashSize])
	return off + types.HashSize
}

func appendLenPrefixed(buf, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

func readLenPrefixed(data []byte, off int) ([]byte, int, error) {
	if len(data) < off+4 {
		return nil, off, ErrMessageTooShort
	}
	n := int(binary.BigEndian.Uint32(data[off:]))
	off += 4
	if len(data) < off+n {
		return nil, off, ErrMessageTooShort
	}
	out := make([]byte, n)
	copy(out, data[off:off+n])
	return out, off + n, nil
}

func appendHashList(buf []byte, hashes []types.Hash) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(hashes)))
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return buf
}

func readHashList(data []byte, off int) ([]types.Hash, int, error) {
	if len(data) < off+4 {
		return nil, off, ErrMessageTooShort
	}
	n := int(binary.BigEndian.Uint32(data[off:]))
	off += 4
	if len(data) < off+n*types.HashSize {
		return nil, off, ErrMessageTooShort
	}
	out := make([]types.Hash, n)
	for i := 0; i < n; i++ {
		off = copyHash(&out[i], data, off)
	}
	return out, off, nil
}
