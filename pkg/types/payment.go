package types

// WalletConnection is one contributor's registered wallet on one chain.
type WalletConnection struct {
	ChainID        ChainID
	BalanceCommit  Hash
	OwnershipProof []byte
	LastVerified   uint64
	Active         bool
}

// ChainContribution is one chain's claimed share of a monthly collection,
// together with the balance proof backing it.
type ChainContribution struct {
	ChainID      ChainID
	Amount       uint64
	BalanceProof []byte
}

// CollectionParams describes one monthly-collection request.
type CollectionParams struct {
	Contributor     IdentityCommitment
	CircleID        Hash
	Round           int
	RequiredAmount  uint64
	RecipientCommit Hash
	Contributions   []ChainContribution
	AllowPartial    bool
	MaxRetries      int
	Priority        int
}

// CollectionStatus is the outcome category of a collection attempt.
type CollectionStatus uint8

const (
	CollectionSuccess CollectionStatus = iota
	CollectionPartial
	CollectionFailed
)

// CollectionResult is the outcome of a collect() call.
type CollectionResult struct {
	Status          CollectionStatus
	TotalCollected  uint64
	Shortfall       uint64
	NextPaymentDue  uint64
	AnonymityScore  int
	RecordID        Hash
}

// RetryReason classifies a recoverable payment failure.
type RetryReason string

const (
	ReasonNetworkError      RetryReason = "NETWORK_ERROR"
	ReasonTemporaryFailure  RetryReason = "TEMPORARY_FAILURE"
	ReasonInsufficientGas   RetryReason = "INSUFFICIENT_GAS"
)

// RetryAttempt is one queued retry of a failed collection.
type RetryAttempt struct {
	AttemptID    Hash
	Params       CollectionParams
	N            int
	NextRetryAt  uint64
	MaxRetries   int
	Reason       RetryReason
}

// EncryptedPaymentRecord is an opaque, encrypted-at-rest payment history
// entry.
type EncryptedPaymentRecord struct {
	RecordID            Hash
	CiphertextAmount    []byte
	CiphertextBreakdown []byte
	AnonymityScore      int
	SettlementProof     []byte
	PaymentHash         Hash
	CreatedAt           uint64
}

// HistorySummary aggregates decrypted payment history.
type HistorySummary struct {
	TotalPayments        int
	TotalAmount          uint64
	AverageAnonymityScore float64
}
