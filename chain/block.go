package chain

import (
	"crypto/ed25519"
	"sort"
	"time"

	"github.com/blockberries/stakeberry/forkdb"
	"github.com/blockberries/stakeberry/logging"
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// blockHeaderReserve is encoded space set aside for the header and
// signature when packing transactions into a produced block.
const blockHeaderReserve = 512

// PushBlock links a block into the fork database and, when it extends
// or overtakes the best branch, applies it to state. Blocks on shorter
// branches are stored but not applied.
func (db *Database) PushBlock(b *protocol.SignedBlock, skip SkipFlags) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.skipFlags = skip
	return db.pushBlock(b)
}

func (db *Database) pushBlock(b *protocol.SignedBlock) error {
	item, err := db.forkDB.PushBlock(b)
	if err != nil {
		return types.Validationf("push block %d: %v", b.BlockNum(), err)
	}

	head := db.idx.GlobalProps().HeadBlockID
	switch {
	case item.Block.Previous.Equal(head):
		// Extends the current branch.
	case db.forkDB.Head() == item:
		return db.switchForks(item)
	default:
		db.log.Debug("stored block on shorter fork",
			logging.BlockNum(item.Num), logging.BlockHash(item.ID))
		return nil
	}

	db.clearPending()
	if err := db.applyBlockSession(b); err != nil {
		db.forkDB.Remove(item.ID)
		db.rebuildPending()
		return err
	}
	if err := db.updateLastIrreversibleBlock(); err != nil {
		return err
	}
	db.rebuildPending()
	return nil
}

// switchForks moves state from the current branch to the one ending at
// item. The abandoned branch's transactions go back to the pending
// queue; if any block on the new branch fails, the old branch is
// restored and the bad branch discarded.
func (db *Database) switchForks(item *forkdb.Item) error {
	head := db.idx.GlobalProps().HeadBlockID
	newBranch, oldBranch, err := db.forkDB.FetchBranchFrom(item.ID, head)
	if err != nil {
		return types.Consistencyf("fork switch: %v", err)
	}
	db.log.Info("switching forks",
		logging.BlockNum(item.Num), logging.BlockHash(item.ID),
		logging.Count(len(oldBranch)))

	db.clearPending()
	for _, old := range oldBranch {
		if err := db.state.Undo(); err != nil {
			return err
		}
		db.requeueTransactions(old.Block)
	}

	// Branches come newest first; apply oldest first.
	for i := len(newBranch) - 1; i >= 0; i-- {
		next := newBranch[i]
		if err := db.applyBlockSession(next.Block); err != nil {
			db.log.Warn("fork block failed, restoring previous branch",
				logging.BlockNum(next.Num), logging.BlockHash(next.ID),
				logging.Error(err))

			// Drop the bad block and everything above it.
			for j := i; j >= 0; j-- {
				db.forkDB.Remove(newBranch[j].ID)
			}
			for k := len(newBranch) - 1; k > i; k-- {
				if uerr := db.state.Undo(); uerr != nil {
					return uerr
				}
			}
			for k := len(oldBranch) - 1; k >= 0; k-- {
				if aerr := db.applyBlockSession(oldBranch[k].Block); aerr != nil {
					return types.Consistencyf("restore branch at %d: %v", oldBranch[k].Num, aerr)
				}
			}
			db.forkDB.SetHead(oldBranch[0])
			db.rebuildPending()
			return err
		}
	}

	db.metrics.IncForkSwitches()
	if err := db.updateLastIrreversibleBlock(); err != nil {
		return err
	}
	db.rebuildPending()
	return nil
}

// applyBlockSession runs applyBlock inside one undo session so the
// block can later be popped. SkipUndoBlock applies without a session,
// for replay where blocks are already irreversible.
func (db *Database) applyBlockSession(b *protocol.SignedBlock) error {
	if db.skipFlags.Has(SkipUndoBlock) {
		if err := db.applyBlock(b); err != nil {
			return err
		}
		return db.state.SetRevision(int64(b.BlockNum()))
	}
	session := db.state.StartUndoSession()
	if err := db.applyBlock(b); err != nil {
		session.Undo()
		return err
	}
	session.Push()
	db.metrics.SetStateRevision(db.state.Revision())
	db.metrics.SetUndoStackDepth(db.state.UndoDepth())
	return nil
}

func (db *Database) applyBlock(b *protocol.SignedBlock) error {
	start := time.Now()
	blockNum := b.BlockNum()
	db.applyCtx = applyContext{blockNum: blockNum}

	data, err := b.MarshalCramberry()
	if err != nil {
		return err
	}
	props := db.idx.GlobalProps()
	if !db.skipFlags.Has(SkipBlockSizeCheck) && props.HeadBlockNumber > 0 {
		if uint32(len(data)) > props.MaximumBlockSize {
			return types.Validationf("block %d size %d exceeds limit %d",
				blockNum, len(data), props.MaximumBlockSize)
		}
	}

	w, slot, err := db.validateBlockHeader(b)
	if err != nil {
		return err
	}

	for i := range b.Transactions {
		tx := &b.Transactions[i]
		nested := db.state.StartUndoSession()
		if err := db.applyTransaction(tx, i); err != nil {
			nested.Undo()
			return types.Validationf("block %d transaction %d: %v", blockNum, i, err)
		}
		nested.Squash()
	}

	if err := db.updateGlobalDynamicData(b, slot); err != nil {
		return err
	}
	if err := db.updateSigningWitness(b, w); err != nil {
		return err
	}
	if err := db.createBlockSummary(b); err != nil {
		return err
	}
	if err := db.runMaintenance(); err != nil {
		return err
	}

	db.metrics.IncBlocksApplied()
	db.metrics.SetBlockSize(len(data))
	db.metrics.SetHeadBlockNum(blockNum)
	db.metrics.ObserveBlockApplyDuration(time.Since(start))
	db.log.Debug("applied block",
		logging.BlockNum(blockNum),
		logging.Witness(string(b.Witness)),
		logging.Count(len(b.Transactions)))

	db.notifyAppliedBlock(b)
	return nil
}

// validateBlockHeader checks linkage, timing, the production schedule
// and the witness signature. It returns the producing witness and the
// block's slot relative to the previous head.
func (db *Database) validateBlockHeader(b *protocol.SignedBlock) (*state.Witness, uint32, error) {
	props := db.idx.GlobalProps()
	if props.HeadBlockNumber > 0 && !b.Previous.Equal(props.HeadBlockID) {
		return nil, 0, types.Validationf("block %d does not link to head %x",
			b.BlockNum(), props.HeadBlockID[:4])
	}
	if !b.Timestamp.After(props.Time) && props.HeadBlockNumber > 0 {
		return nil, 0, types.Validationf("block %d timestamp %s not after head %s",
			b.BlockNum(), b.Timestamp, props.Time)
	}
	slot := db.slotAtTime(b.Timestamp)
	if slot == 0 || db.slotTime(slot) != b.Timestamp {
		return nil, 0, types.Validationf("block %d timestamp %s off the slot grid",
			b.BlockNum(), b.Timestamp)
	}
	if !db.skipFlags.Has(SkipWitnessSchedule) {
		if scheduled := db.scheduledWitness(slot); scheduled != b.Witness {
			return nil, 0, types.Validationf("witness %s produced out of turn, slot belongs to %s",
				b.Witness, scheduled)
		}
	}

	w, err := db.witness(b.Witness)
	if err != nil {
		return nil, 0, err
	}
	if !db.skipFlags.Has(SkipWitnessSignature) {
		ok, err := b.VerifySignature(w.SigningKey, db.chainID)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, types.Validationf("block %d not signed by witness %s", b.BlockNum(), b.Witness)
		}
	}
	if !db.skipFlags.Has(SkipMerkleCheck) {
		root, err := b.MerkleRoot()
		if err != nil {
			return nil, 0, err
		}
		if !root.Equal(b.TxMerkleRoot) {
			return nil, 0, types.Validationf("block %d merkle root mismatch", b.BlockNum())
		}
	}
	return w, slot, nil
}

func (db *Database) applyTransaction(tx *protocol.SignedTransaction, trxInBlock int) error {
	data, err := tx.MarshalCramberry()
	if err != nil {
		return err
	}
	if len(data) > protocol.MaxTransactionSize {
		return types.Validationf("transaction size %d exceeds limit %d",
			len(data), protocol.MaxTransactionSize)
	}
	if !db.skipFlags.Has(SkipValidation) {
		if err := tx.Validate(); err != nil {
			return err
		}
	}

	now := db.idx.GlobalProps().Time
	if !tx.Expiration.After(now) {
		return types.Validationf("transaction expired at %s, head time %s", tx.Expiration, now)
	}
	if tx.Expiration.After(now.Add(MaxTimeUntilExpirationSec)) {
		return types.Validationf("transaction expiration %s too far in the future", tx.Expiration)
	}

	if !db.skipFlags.Has(SkipTaposCheck) {
		summary := db.idx.BlockSummaryAt(tx.RefBlockNum)
		if protocol.RefBlockPrefixFromID(summary.BlockID) != tx.RefBlockPrefix {
			return types.Validationf("transaction references unknown block %d", tx.RefBlockNum)
		}
	}

	trxID, err := tx.ID()
	if err != nil {
		return err
	}
	if !db.skipFlags.Has(SkipTransactionDupe) {
		probe := &state.TransactionObject{TrxID: trxID}
		if _, ok := db.idx.TransactionObjects.Index(state.ByTrxID).Find(probe); ok {
			return types.Validationf("duplicate transaction %s", trxID)
		}
		probe.Expiration = tx.Expiration
		if _, err := db.idx.TransactionObjects.Create(probe); err != nil {
			return err
		}
	}

	var sigKeys []protocol.PublicKey
	if !db.skipFlags.Has(SkipTransactionSigs) {
		sigKeys, err = tx.SignedKeys(db.chainID)
		if err != nil {
			return err
		}
		if !db.skipFlags.Has(SkipAuthorityCheck) {
			if err := tx.VerifyAuthority(db.chainID, db.ownerAuthority, db.activeAuthority); err != nil {
				return err
			}
		}
	}

	// Bandwidth is charged before the operations run, so a transaction
	// cannot fund the stake that pays for it.
	if err := db.chargeBandwidth(tx, uint32(len(data))); err != nil {
		return err
	}

	db.applyCtx.trxID = trxID
	db.applyCtx.trxInBlock = trxInBlock
	db.applyCtx.sigKeys = sigKeys
	for i, op := range tx.Operations {
		db.applyCtx.opInTrx = i
		if err := db.applyOperation(op); err != nil {
			return err
		}
	}

	db.metrics.IncTxsApplied()
	return nil
}

// chargeBandwidth debits every account whose authority the transaction
// required. Market operations are charged against the market pool.
func (db *Database) chargeBandwidth(tx *protocol.SignedTransaction, size uint32) error {
	if db.skipFlags.Has(SkipBandwidthCheck) {
		return nil
	}
	typ := state.BandwidthForum
	for _, op := range tx.Operations {
		if op.Type().IsMarket() {
			typ = state.BandwidthMarket
			break
		}
	}
	req := tx.RequiredAuthorities()
	charged := make(map[types.AccountName]bool, len(req.Active)+len(req.Owner))
	for _, name := range append(req.Active, req.Owner...) {
		if charged[name] {
			continue
		}
		charged[name] = true
		acc, err := db.account(name)
		if err != nil {
			return err
		}
		if err := db.updateAccountBandwidth(acc, size, typ); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) updateGlobalDynamicData(b *protocol.SignedBlock, slot uint32) error {
	id, err := b.BlockID()
	if err != nil {
		return err
	}

	// Slots between the head block and this one went unproduced.
	for i := uint32(1); i < slot; i++ {
		name := db.scheduledWitness(i)
		if name == "" || name == b.Witness {
			continue
		}
		missed, err := db.witness(name)
		if err != nil {
			return err
		}
		if err := db.modifyWitness(missed, func(w *state.Witness) {
			w.TotalMissed++
		}); err != nil {
			return err
		}
	}

	var participation uint8
	err = db.modifyGlobal(func(p *state.DynamicGlobalProperties) {
		shift := uint(slot)
		if shift > 128 {
			shift = 128
		}
		p.RecentSlotsFilled = p.RecentSlotsFilled.Shl(shift).Or(types.U128(1))
		p.ParticipationCount = uint8(p.RecentSlotsFilled.PopCount())
		participation = p.ParticipationCount

		p.HeadBlockNumber = b.BlockNum()
		p.HeadBlockID = id
		p.Time = b.Timestamp
		p.CurrentWitness = b.Witness
		p.CurrentAslot += uint64(slot)
	})
	if err != nil {
		return err
	}
	db.metrics.SetWitnessParticipation(float64(participation) * 100 / 128)
	return nil
}

func (db *Database) updateSigningWitness(b *protocol.SignedBlock, w *state.Witness) error {
	aslot := db.idx.GlobalProps().CurrentAslot
	return db.modifyWitness(w, func(w *state.Witness) {
		w.LastAslot = aslot
		w.LastConfirmedBlockNum = b.BlockNum()
	})
}

// createBlockSummary records the block id in the TaPoS ring so future
// transactions can reference it.
func (db *Database) createBlockSummary(b *protocol.SignedBlock) error {
	id, err := b.BlockID()
	if err != nil {
		return err
	}
	summary := db.idx.BlockSummaryAt(uint16(b.BlockNum() % TaposRingSize))
	return db.idx.BlockSummaries.Modify(summary, func(obj store.Object) {
		obj.(*state.BlockSummary).BlockID = id
	})
}

// updateLastIrreversibleBlock advances the finality boundary to the
// height confirmed by three quarters of the scheduled witnesses, writes
// the newly final blocks to the block log and retires their undo
// states.
func (db *Database) updateLastIrreversibleBlock() error {
	props := db.idx.GlobalProps()
	sched := db.idx.Schedule()

	confirmed := make([]uint32, 0, len(sched.CurrentShuffledWitnesses))
	for _, name := range sched.CurrentShuffledWitnesses {
		if w, ok := db.idx.Witness(name); ok {
			confirmed = append(confirmed, w.LastConfirmedBlockNum)
		}
	}
	if len(confirmed) == 0 {
		return nil
	}
	sort.Slice(confirmed, func(i, j int) bool { return confirmed[i] < confirmed[j] })
	offset := (len(confirmed) - 1) * (int(types.Percent100) - IrreversibleThreshold) / int(types.Percent100)
	newLIB := confirmed[offset]
	if newLIB <= props.LastIrreversibleBlockNum {
		return nil
	}

	if err := db.saveIrreversibleBlocks(props.LastIrreversibleBlockNum+1, newLIB); err != nil {
		return err
	}
	if err := db.modifyGlobal(func(p *state.DynamicGlobalProperties) {
		p.LastIrreversibleBlockNum = newLIB
	}); err != nil {
		return err
	}
	db.state.Commit(int64(newLIB))
	db.forkDB.Prune(newLIB)
	db.metrics.SetIrreversibleBlockNum(newLIB)
	db.metrics.SetUndoStackDepth(db.state.UndoDepth())
	db.notifyIrreversible(newLIB)
	return nil
}

// saveIrreversibleBlocks writes blocks from..to inclusive to the block
// log, following the main branch back from the fork head.
func (db *Database) saveIrreversibleBlocks(from, to uint32) error {
	head := db.forkDB.Head()
	if head == nil {
		return nil
	}
	items := make(map[uint32]*forkdb.Item, to-from+1)
	for item := head; item != nil && item.Num >= from; {
		if item.Num <= to {
			items[item.Num] = item
		}
		parent, ok := db.forkDB.Fetch(item.Block.Previous)
		if !ok {
			break
		}
		item = parent
	}
	for num := from; num <= to; num++ {
		item, ok := items[num]
		if !ok {
			return types.Consistencyf("irreversible block %d missing from fork database", num)
		}
		data, err := item.Block.MarshalCramberry()
		if err != nil {
			return err
		}
		if err := db.blockLog.SaveBlock(num, item.ID, data); err != nil {
			return err
		}
	}
	return nil
}

// PushTransaction validates a transaction against pending state and
// queues it for the next produced block.
func (db *Database) PushTransaction(tx *protocol.SignedTransaction) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.skipFlags = SkipNothing

	if db.pendingSession == nil {
		db.pendingSession = db.state.StartUndoSession()
	}
	db.applyCtx = applyContext{blockNum: db.idx.GlobalProps().HeadBlockNumber + 1}

	nested := db.state.StartUndoSession()
	if err := db.applyTransaction(tx, len(db.pendingTx)); err != nil {
		nested.Undo()
		db.metrics.IncTxsRejected(types.KindOf(err).String())
		return err
	}
	nested.Squash()
	db.pendingTx = append(db.pendingTx, tx)
	db.metrics.SetPendingTxs(len(db.pendingTx))
	return nil
}

// PendingTransactions returns a snapshot of the queued transactions.
func (db *Database) PendingTransactions() []*protocol.SignedTransaction {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]*protocol.SignedTransaction(nil), db.pendingTx...)
}

// clearPending unwinds the pending-transaction session so block apply
// starts from clean state. The queued transactions stay in memory for
// rebuildPending.
func (db *Database) clearPending() {
	if db.pendingSession != nil {
		db.pendingSession.Undo()
		db.pendingSession = nil
	}
}

// rebuildPending re-applies the queued transactions on top of the new
// head. Transactions that became invalid, including those the head
// block already contains, are dropped.
func (db *Database) rebuildPending() {
	queued := db.pendingTx
	db.pendingTx = nil
	if len(queued) > 0 {
		db.pendingSession = db.state.StartUndoSession()
		db.applyCtx = applyContext{blockNum: db.idx.GlobalProps().HeadBlockNumber + 1}
		for _, tx := range queued {
			nested := db.state.StartUndoSession()
			if err := db.applyTransaction(tx, len(db.pendingTx)); err != nil {
				nested.Undo()
				db.log.Debug("dropped pending transaction", logging.Error(err))
				continue
			}
			nested.Squash()
			db.pendingTx = append(db.pendingTx, tx)
		}
	}
	db.metrics.SetPendingTxs(len(db.pendingTx))
}

// requeueTransactions puts a popped block's transactions back in the
// pending queue for revalidation.
func (db *Database) requeueTransactions(b *protocol.SignedBlock) {
	for i := range b.Transactions {
		tx := b.Transactions[i]
		db.pendingTx = append(db.pendingTx, &tx)
	}
}

// GenerateBlock packs pending transactions into a new signed block at
// the given slot time and applies it.
func (db *Database) GenerateBlock(
	when types.TimeSec,
	witness types.AccountName,
	priv ed25519.PrivateKey,
	skip SkipFlags,
) (*protocol.SignedBlock, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.skipFlags = skip
	db.producing = true
	defer func() { db.producing = false }()

	slot := db.slotAtTime(when)
	if slot == 0 || db.slotTime(slot) != when {
		return nil, types.Validationf("generation time %s off the slot grid", when)
	}
	if !skip.Has(SkipWitnessSchedule) {
		if scheduled := db.scheduledWitness(slot); scheduled != witness {
			return nil, types.Validationf("witness %s not scheduled for slot %d", witness, slot)
		}
	}
	w, err := db.witness(witness)
	if err != nil {
		return nil, err
	}
	if !skip.Has(SkipWitnessSignature) {
		pub := protocol.PublicKey(priv.Public().(ed25519.PublicKey))
		if !w.SigningKey.Equal(pub) {
			return nil, types.Validationf("signing key does not match witness %s", witness)
		}
	}

	props := db.idx.GlobalProps()
	headID := props.HeadBlockID
	budget := int(props.MaximumBlockSize) - blockHeaderReserve

	db.clearPending()
	queued := db.pendingTx
	db.pendingTx = nil

	// Apply the candidates in a throwaway session to find out which of
	// them fit a valid block; the real mutation happens in pushBlock.
	session := db.state.StartUndoSession()
	db.applyCtx = applyContext{blockNum: props.HeadBlockNumber + 1}
	var included []protocol.SignedTransaction
	total := 0
	for _, tx := range queued {
		data, err := tx.MarshalCramberry()
		if err != nil {
			db.log.Debug("dropped unencodable pending transaction", logging.Error(err))
			continue
		}
		if total+len(data) > budget {
			db.pendingTx = append(db.pendingTx, tx)
			continue
		}
		nested := db.state.StartUndoSession()
		if err := db.applyTransaction(tx, len(included)); err != nil {
			nested.Undo()
			db.log.Debug("excluded pending transaction from block", logging.Error(err))
			continue
		}
		nested.Squash()
		included = append(included, *tx)
		total += len(data)
	}
	session.Undo()

	b := &protocol.SignedBlock{
		BlockHeader: protocol.BlockHeader{
			Previous:  headID,
			Timestamp: when,
			Witness:   witness,
		},
		Transactions: included,
	}
	root, err := b.MerkleRoot()
	if err != nil {
		return nil, err
	}
	b.TxMerkleRoot = root
	if err := b.Sign(priv, db.chainID); err != nil {
		return nil, err
	}

	if err := db.pushBlock(b); err != nil {
		return nil, err
	}
	db.metrics.IncBlocksProduced()
	db.log.Info("produced block",
		logging.BlockNum(b.BlockNum()),
		logging.Witness(string(witness)),
		logging.Count(len(included)))
	return b, nil
}

// PopBlock unwinds the head block. Its transactions return to the
// pending queue.
func (db *Database) PopBlock() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	head := db.forkDB.Head()
	if head == nil {
		return types.Consistencyf("pop block: no head")
	}
	if head.Num <= db.idx.GlobalProps().LastIrreversibleBlockNum {
		return types.Validationf("pop block: block %d is irreversible", head.Num)
	}

	db.clearPending()
	if _, err := db.forkDB.PopBlock(); err != nil {
		return types.Consistencyf("pop block: %v", err)
	}
	if err := db.state.Undo(); err != nil {
		return err
	}
	db.requeueTransactions(head.Block)
	db.rebuildPending()
	db.metrics.SetHeadBlockNum(db.idx.GlobalProps().HeadBlockNumber)
	return nil
}
