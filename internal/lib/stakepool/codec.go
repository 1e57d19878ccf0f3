package stakepool

import (
	"bytes"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Encode serializes any account entity of this package into its fixed little-endian layout.
func Encode(account bin.BinaryMarshaler) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := account.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode dispatches on the leading discriminant and returns *StakePool, *ValidatorList or
// *TokenMetadata.
func Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, newError(ErrTruncatedBuffer).because("empty account data")
	}
	switch data[0] {
	case AccountTypeStakePool:
		return DecodeStakePool(data)
	case AccountTypeValidatorList:
		return DecodeValidatorList(data)
	case MetadataKeyV1:
		return DecodeTokenMetadata(data)
	case AccountTypeUninitialized:
		return nil, newError(ErrUninitializedAccount)
	}
	return nil, newError(ErrUnknownDiscriminant).because("tag %d", data[0])
}

func DecodeStakePool(data []byte) (*StakePool, error) {
	var pool StakePool
	if err := decodeTagged(data, AccountTypeStakePool, &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

func DecodeValidatorList(data []byte) (*ValidatorList, error) {
	var list ValidatorList
	if err := decodeTagged(data, AccountTypeValidatorList, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func DecodeTokenMetadata(data []byte) (*TokenMetadata, error) {
	var md TokenMetadata
	if err := decodeTagged(data, MetadataKeyV1, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

// DecodeMint reads a token mint record. Mints carry no discriminant, only a fixed size.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) < MintSize {
		return nil, newError(ErrTruncatedBuffer).because("mint needs %d bytes, have %d", MintSize, len(data))
	}
	var mint Mint
	if err := mint.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, err
	}
	return &mint, nil
}

func EncodeValidatorStakeInfo(info ValidatorStakeInfo) ([]byte, error) {
	return Encode(&info)
}

func DecodeValidatorStakeInfo(data []byte) (*ValidatorStakeInfo, error) {
	if len(data) < ValidatorStakeInfoSize {
		return nil, newError(ErrTruncatedBuffer).because("validator stake info needs %d bytes, have %d", ValidatorStakeInfoSize, len(data))
	}
	var info ValidatorStakeInfo
	if err := info.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, err
	}
	return &info, nil
}

func decodeTagged(data []byte, tag byte, into bin.BinaryUnmarshaler) error {
	if len(data) == 0 {
		return newError(ErrTruncatedBuffer).because("empty account data")
	}
	if data[0] != tag {
		if data[0] == AccountTypeUninitialized {
			return newError(ErrUninitializedAccount)
		}
		return newError(ErrUnknownDiscriminant).because("expected tag %d, found %d", tag, data[0])
	}
	return into.UnmarshalWithDecoder(bin.NewBinDecoder(data))
}

// StakePool

func (p *StakePool) MarshalWithEncoder(encoder *bin.Encoder) error {
	marker, err := stateMarker(p.State)
	if err != nil {
		return err
	}
	w := &fieldWriter{enc: encoder}
	w.u8(AccountTypeStakePool)
	w.key(p.Manager)
	w.key(p.Staker)
	w.key(p.StakeDepositAuthority)
	w.u8(p.StakeWithdrawBumpSeed)
	w.key(p.ValidatorList)
	w.key(p.ReserveStake)
	w.key(p.PoolMint)
	w.key(p.ManagerFeeAccount)
	w.key(p.TokenProgramID)
	w.u64(p.TotalLamports)
	w.u64(p.PoolTokenSupply)
	w.u64(p.LastUpdateEpoch)
	w.i64(p.Lockup.UnixTimestamp)
	w.u64(p.Lockup.Epoch)
	w.key(p.Lockup.Custodian)
	w.fee(p.EpochFee)
	w.futureFee(p.NextEpochFee)
	w.optKey(p.PreferredDepositValidator)
	w.optKey(p.PreferredWithdrawValidator)
	w.fee(p.StakeDepositFee)
	w.fee(p.StakeWithdrawalFee)
	w.futureFee(p.NextStakeWithdrawalFee)
	w.u8(p.StakeReferralFee)
	w.optKey(p.SolDepositAuthority)
	w.fee(p.SolDepositFee)
	w.u8(p.SolReferralFee)
	w.optKey(p.SolWithdrawAuthority)
	w.fee(p.SolWithdrawalFee)
	w.futureFee(p.NextSolWithdrawalFee)
	w.u64(p.LastEpochPoolTokenSupply)
	w.u64(p.LastEpochTotalLamports)
	w.u8(marker)
	return w.err
}

func (p *StakePool) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	r := &fieldReader{dec: decoder}
	r.u8() // account type, checked by caller
	p.Manager = r.key()
	p.Staker = r.key()
	p.StakeDepositAuthority = r.key()
	p.StakeWithdrawBumpSeed = r.u8()
	p.ValidatorList = r.key()
	p.ReserveStake = r.key()
	p.PoolMint = r.key()
	p.ManagerFeeAccount = r.key()
	p.TokenProgramID = r.key()
	p.TotalLamports = r.u64()
	p.PoolTokenSupply = r.u64()
	p.LastUpdateEpoch = r.u64()
	p.Lockup.UnixTimestamp = r.i64()
	p.Lockup.Epoch = r.u64()
	p.Lockup.Custodian = r.key()
	p.EpochFee = r.fee()
	p.NextEpochFee = r.futureFee()
	p.PreferredDepositValidator = r.optKey()
	p.PreferredWithdrawValidator = r.optKey()
	p.StakeDepositFee = r.fee()
	p.StakeWithdrawalFee = r.fee()
	p.NextStakeWithdrawalFee = r.futureFee()
	p.StakeReferralFee = r.u8()
	p.SolDepositAuthority = r.optKey()
	p.SolDepositFee = r.fee()
	p.SolReferralFee = r.u8()
	p.SolWithdrawAuthority = r.optKey()
	p.SolWithdrawalFee = r.fee()
	p.NextSolWithdrawalFee = r.futureFee()
	p.LastEpochPoolTokenSupply = r.u64()
	p.LastEpochTotalLamports = r.u64()
	if err := r.done(); err != nil {
		return err
	}
	// Accounts written by the on-chain program end here (or are zero padded); both read as Active.
	p.State = StateActive
	if decoder.Remaining() > 0 {
		state, err := stateFromMarker(r.u8())
		if err != nil {
			return err
		}
		p.State = state
	}
	return r.done()
}

func stateMarker(state PoolState) (uint8, error) {
	switch state {
	case StateActive:
		return 0, nil
	case StateDecommissioning:
		return 1, nil
	case StateClosed:
		return 2, nil
	}
	return 0, newError(ErrUninitializedAccount).withField("state").because("cannot encode pool in state %s", state)
}

func stateFromMarker(marker uint8) (PoolState, error) {
	switch marker {
	case 0:
		return StateActive, nil
	case 1:
		return StateDecommissioning, nil
	case 2:
		return StateClosed, nil
	}
	return StateUninitialized, newError(ErrUnknownDiscriminant).withField("state").because("lifecycle marker %d", marker)
}

// ValidatorList

func (l *ValidatorList) MarshalWithEncoder(encoder *bin.Encoder) error {
	w := &fieldWriter{enc: encoder}
	w.u8(AccountTypeValidatorList)
	w.u32(l.MaxValidators)
	w.u32(uint32(len(l.Validators)))
	if w.err != nil {
		return w.err
	}
	for i := range l.Validators {
		if err := l.Validators[i].MarshalWithEncoder(encoder); err != nil {
			return err
		}
	}
	return nil
}

func (l *ValidatorList) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	if decoder.Remaining() < ValidatorListHeaderSize {
		return newError(ErrTruncatedBuffer).because("validator list header needs %d bytes, have %d", ValidatorListHeaderSize, decoder.Remaining())
	}
	r := &fieldReader{dec: decoder}
	r.u8()
	l.MaxValidators = r.u32()
	count := r.u32()
	if err := r.done(); err != nil {
		return err
	}
	if count > l.MaxValidators {
		return newError(ErrTruncatedBuffer).withField("validators").because("list declares %d entries for a capacity of %d", count, l.MaxValidators)
	}
	if uint64(decoder.Remaining()) < uint64(count)*ValidatorStakeInfoSize {
		return newError(ErrTruncatedBuffer).because("validator list declares %d entries, only %d bytes remain", count, decoder.Remaining())
	}
	l.Validators = make([]ValidatorStakeInfo, count)
	for i := range l.Validators {
		if err := l.Validators[i].UnmarshalWithDecoder(decoder); err != nil {
			return err
		}
	}
	return nil
}

// ValidatorStakeInfo

func (v *ValidatorStakeInfo) MarshalWithEncoder(encoder *bin.Encoder) error {
	w := &fieldWriter{enc: encoder}
	w.u64(v.ActiveStakeLamports)
	w.u64(v.TransientStakeLamports)
	w.u64(v.LastUpdateEpoch)
	w.u64(v.TransientSeedSuffix)
	w.u32(v.Unused)
	w.u32(v.ValidatorSeedSuffix)
	w.u8(uint8(v.Status))
	w.key(v.VoteAccount)
	return w.err
}

func (v *ValidatorStakeInfo) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	r := &fieldReader{dec: decoder}
	v.ActiveStakeLamports = r.u64()
	v.TransientStakeLamports = r.u64()
	v.LastUpdateEpoch = r.u64()
	v.TransientSeedSuffix = r.u64()
	v.Unused = r.u32()
	v.ValidatorSeedSuffix = r.u32()
	v.Status = StakeStatus(r.u8())
	v.VoteAccount = r.key()
	if err := r.done(); err != nil {
		return err
	}
	switch v.Status {
	case StatusActive, StatusDeactivatingTransient, StatusReadyForRemoval:
	case statusDeactivatingValidator, statusDeactivatingAll:
		// stake is still draining either way
		v.Status = StatusDeactivatingTransient
	default:
		return newError(ErrUnknownDiscriminant).withField("status").at(v.VoteAccount).because("status %d", v.Status)
	}
	return nil
}

// TokenMetadata

func (m *TokenMetadata) MarshalWithEncoder(encoder *bin.Encoder) error {
	for _, f := range []struct {
		name  string
		value string
		width int
	}{
		{"name", m.Name, MaxNameLength},
		{"symbol", m.Symbol, MaxSymbolLength},
		{"uri", m.URI, MaxURILength},
	} {
		if len(f.value) > f.width {
			return newError(ErrFieldTooLong).withField(f.name).because("%d bytes, max %d", len(f.value), f.width)
		}
		if i := strings.IndexByte(f.value, 0); i >= 0 {
			return newError(ErrFieldHasNul).withField(f.name).because("at byte %d", i)
		}
	}
	w := &fieldWriter{enc: encoder}
	w.u8(MetadataKeyV1)
	w.key(m.UpdateAuthority)
	w.key(m.Mint)
	w.padded(m.Name, MaxNameLength)
	w.padded(m.Symbol, MaxSymbolLength)
	w.padded(m.URI, MaxURILength)
	w.u16(m.SellerFeeBasisPoints)
	// creators: none, primary sale: false, mutable: true, edition nonce / token standard /
	// collection / uses: none
	w.raw([]byte{0, 0, 1, 0, 0, 0, 0})
	return w.err
}

func (m *TokenMetadata) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	if decoder.Remaining() < MetadataMinSize {
		return newError(ErrTruncatedBuffer).because("metadata needs %d bytes, have %d", MetadataMinSize, decoder.Remaining())
	}
	r := &fieldReader{dec: decoder}
	r.u8()
	m.UpdateAuthority = r.key()
	m.Mint = r.key()
	m.Name = r.padded(MaxNameLength)
	m.Symbol = r.padded(MaxSymbolLength)
	m.URI = r.padded(MaxURILength)
	m.SellerFeeBasisPoints = r.u16()
	return r.done()
}

// Mint

func (m *Mint) MarshalWithEncoder(encoder *bin.Encoder) error {
	w := &fieldWriter{enc: encoder}
	w.cOptKey(m.MintAuthority)
	w.u64(m.Supply)
	w.u8(m.Decimals)
	w.boolean(m.IsInitialized)
	w.cOptKey(m.FreezeAuthority)
	return w.err
}

func (m *Mint) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	r := &fieldReader{dec: decoder}
	m.MintAuthority = r.cOptKey()
	m.Supply = r.u64()
	m.Decimals = r.u8()
	m.IsInitialized = r.u8() != 0
	m.FreezeAuthority = r.cOptKey()
	return r.done()
}

// fieldWriter keeps the first encoder error so layouts read top to bottom.
type fieldWriter struct {
	enc *bin.Encoder
	err error
}

func (w *fieldWriter) do(fn func() error) {
	if w.err == nil {
		w.err = fn()
	}
}

func (w *fieldWriter) u8(v uint8)   { w.do(func() error { return w.enc.WriteUint8(v) }) }
func (w *fieldWriter) u16(v uint16) { w.do(func() error { return w.enc.WriteUint16(v, bin.LE) }) }
func (w *fieldWriter) u32(v uint32) { w.do(func() error { return w.enc.WriteUint32(v, bin.LE) }) }
func (w *fieldWriter) u64(v uint64) { w.do(func() error { return w.enc.WriteUint64(v, bin.LE) }) }
func (w *fieldWriter) i64(v int64)  { w.do(func() error { return w.enc.WriteInt64(v, bin.LE) }) }
func (w *fieldWriter) raw(b []byte) { w.do(func() error { return w.enc.WriteBytes(b, false) }) }

func (w *fieldWriter) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *fieldWriter) key(k solana.PublicKey) {
	w.raw(k[:])
}

func (w *fieldWriter) optKey(k *solana.PublicKey) {
	if k == nil {
		w.u8(0)
		return
	}
	w.u8(1)
	w.key(*k)
}

// cOptKey is the token program's 4 byte tagged, always 36 byte wide option.
func (w *fieldWriter) cOptKey(k *solana.PublicKey) {
	if k == nil {
		w.u32(0)
		w.key(solana.PublicKey{})
		return
	}
	w.u32(1)
	w.key(*k)
}

// fee is written denominator first.
func (w *fieldWriter) fee(f Fee) {
	w.u64(f.Denominator)
	w.u64(f.Numerator)
}

func (w *fieldWriter) futureFee(f FutureFee) {
	w.u8(f.Epochs)
	if f.Epochs != 0 {
		w.fee(f.Fee)
	}
}

// padded writes a u32 length of width followed by s zero padded to width.
func (w *fieldWriter) padded(s string, width int) {
	w.u32(uint32(width))
	buf := make([]byte, width)
	copy(buf, s)
	w.raw(buf)
}

// fieldReader is the decoding twin of fieldWriter. Any short read turns into ErrTruncatedBuffer.
type fieldReader struct {
	dec *bin.Decoder
	err error
}

func (r *fieldReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *fieldReader) done() error {
	if r.err == nil {
		return nil
	}
	if spErr, ok := r.err.(*Error); ok {
		return spErr
	}
	return newError(ErrTruncatedBuffer).because("%v", r.err)
}

func (r *fieldReader) bytes(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.dec.Remaining() < n {
		r.fail(fmt.Errorf("need %d bytes, have %d", n, r.dec.Remaining()))
		return make([]byte, n)
	}
	b, err := r.dec.ReadBytes(n)
	if err != nil {
		r.fail(err)
		return make([]byte, n)
	}
	return b
}

func (r *fieldReader) u8() uint8 {
	return r.bytes(1)[0]
}

func (r *fieldReader) u16() uint16 {
	return bin.LE.Uint16(r.bytes(2))
}

func (r *fieldReader) u32() uint32 {
	return bin.LE.Uint32(r.bytes(4))
}

func (r *fieldReader) u64() uint64 {
	return bin.LE.Uint64(r.bytes(8))
}

func (r *fieldReader) i64() int64 {
	return int64(r.u64())
}

func (r *fieldReader) key() solana.PublicKey {
	var k solana.PublicKey
	copy(k[:], r.bytes(solana.PublicKeyLength))
	return k
}

func (r *fieldReader) optKey() *solana.PublicKey {
	switch tag := r.u8(); tag {
	case 0:
		return nil
	case 1:
		k := r.key()
		return &k
	default:
		r.fail(newError(ErrUnknownDiscriminant).because("option tag %d", tag))
		return nil
	}
}

func (r *fieldReader) cOptKey() *solana.PublicKey {
	tag := r.u32()
	k := r.key()
	if tag == 0 {
		return nil
	}
	return &k
}

func (r *fieldReader) fee() Fee {
	den := r.u64()
	num := r.u64()
	return Fee{Numerator: num, Denominator: den}
}

func (r *fieldReader) futureFee() FutureFee {
	switch tag := r.u8(); tag {
	case 0:
		return FutureFee{}
	case 1, 2:
		return FutureFee{Epochs: tag, Fee: r.fee()}
	default:
		r.fail(newError(ErrUnknownDiscriminant).because("future fee tag %d", tag))
		return FutureFee{}
	}
}

// padded reads a fixed width field, honoring the length prefix and trimming NUL padding.
func (r *fieldReader) padded(width int) string {
	n := int(r.u32())
	b := r.bytes(width)
	if n > width {
		n = width
	}
	return strings.TrimRight(string(b[:n]), "\x00")
}
