// Package ledger applies commands to the pool's vaults, tickets and share book.
//
// Every operation validates against copies of the entities it touches and
// commits them only when all checks pass, so a rejected command leaves the
// pool unchanged. Pool is not safe for concurrent use; the engine sequencer
// is its only writer.
package ledger

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/internal/event"
	"mpsol_restaking/pkg/quant"
	"mpsol_restaking/pkg/safe"
)

// Result is the outcome of an accepted command. Entity fields are copies.
type Result struct {
	Main          *domain.MainVault      `json:"main,omitempty"`
	Vault         *domain.SecondaryVault `json:"vault,omitempty"`
	Ticket        *domain.UnstakeTicket  `json:"ticket,omitempty"`
	TicketClosed  bool                   `json:"ticket_closed,omitempty"`
	Deposit       domain.DepositQuote    `json:"deposit"`
	SolValue      uint64                 `json:"sol_value,omitempty"`
	LstAmount     uint64                 `json:"lst_amount,omitempty"`
	Applied       bool                   `json:"applied"` // false when a price observation was older than the stored one
	Notifications []event.Notification   `json:"-"`
}

// Pool holds every entity of one main vault, keyed by identifier.
type Pool struct {
	main    *domain.MainVault
	vaults  map[solana.PublicKey]*domain.SecondaryVault
	tickets map[uuid.UUID]*domain.UnstakeTicket
	shares  *domain.ShareBook
}

// NewPool creates an uninitialized pool.
func NewPool() *Pool {
	return &Pool{
		vaults:  make(map[solana.PublicKey]*domain.SecondaryVault),
		tickets: make(map[uuid.UUID]*domain.UnstakeTicket),
		shares:  domain.NewShareBook(),
	}
}

// Apply dispatches cmd to its handler. Rejections are *domain.OpError.
func (p *Pool) Apply(cmd event.Command) (Result, error) {
	if _, ok := cmd.(*event.InitializeCommand); !ok && p.main == nil {
		return Result{}, domain.NewOpError(string(cmd.GetType()), "", domain.ErrNotInitialized)
	}

	switch c := cmd.(type) {
	case *event.InitializeCommand:
		return p.initialize(c)
	case *event.CreateSecondaryVaultCommand:
		return p.createSecondaryVault(c)
	case *event.ConfigureMainVaultCommand:
		return p.configureMainVault(c)
	case *event.ConfigureSecondaryVaultCommand:
		return p.configureSecondaryVault(c)
	case *event.UpdatePriceCommand:
		return p.updatePrice(c)
	case *event.StakeCommand:
		return p.stake(c)
	case *event.UnstakeCommand:
		return p.unstake(c)
	case *event.TicketClaimCommand:
		return p.ticketClaim(c)
	case *event.AttachStrategyCommand:
		return p.attachStrategy(c)
	case *event.TransferToStrategyCommand:
		return p.transferToStrategy(c)
	case *event.ReturnFromStrategyCommand:
		return p.returnFromStrategy(c)
	case *event.UpdateStrategyAmountCommand:
		return p.updateStrategyAmount(c)
	case *event.SetTicketsTargetCommand:
		return p.setTicketsTarget(c)
	default:
		return Result{}, fmt.Errorf("unsupported command %T", cmd)
	}
}

func (p *Pool) initialize(c *event.InitializeCommand) (Result, error) {
	op := string(c.GetType())
	if p.main != nil {
		return Result{}, domain.NewOpError(op, c.MainState.String(), domain.ErrAlreadyInitialized)
	}
	mv := domain.NewMainVault(c.MainState, c.Caller, c.OperatorAuthority, c.StrategyRebalancerAuthority)
	if err := mv.Configure(c.Config); err != nil {
		return Result{}, domain.NewOpError(op, c.MainState.String(), err)
	}
	mv.LastSeq = c.Seq

	p.main = mv
	return Result{Main: p.main.Clone()}, nil
}

func (p *Pool) createSecondaryVault(c *event.CreateSecondaryVaultCommand) (Result, error) {
	op, subject := string(c.GetType()), c.LstMint.String()
	if !p.main.IsAdmin(c.Caller) {
		return Result{}, domain.NewOpError(op, subject, domain.ErrUnauthorized)
	}
	if _, ok := p.vaults[c.LstMint]; ok {
		return Result{}, domain.NewOpError(op, subject, domain.ErrVaultAlreadyExists)
	}

	mv := p.main.Clone()
	if err := mv.RegisterVault(c.LstMint); err != nil {
		return Result{}, domain.NewOpError(op, subject, err)
	}
	v := domain.NewSecondaryVault(c.LstMint, c.Kind, c.OracleStateAccount, c.VaultLstAccount)
	mv.LastSeq, v.LastSeq = c.Seq, c.Seq

	p.main = mv
	p.vaults[c.LstMint] = v
	return Result{Main: mv.Clone(), Vault: v.Clone()}, nil
}

func (p *Pool) configureMainVault(c *event.ConfigureMainVaultCommand) (Result, error) {
	op := string(c.GetType())
	if !p.main.IsAdmin(c.Caller) {
		return Result{}, domain.NewOpError(op, "", domain.ErrUnauthorized)
	}
	mv := p.main.Clone()
	if err := mv.Configure(c.Config); err != nil {
		return Result{}, domain.NewOpError(op, "", err)
	}
	mv.LastSeq = c.Seq

	p.main = mv
	return Result{Main: mv.Clone()}, nil
}

func (p *Pool) configureSecondaryVault(c *event.ConfigureSecondaryVaultCommand) (Result, error) {
	op, subject := string(c.GetType()), c.LstMint.String()
	if !p.main.IsAdmin(c.Caller) {
		return Result{}, domain.NewOpError(op, subject, domain.ErrUnauthorized)
	}
	cur, ok := p.vaults[c.LstMint]
	if !ok {
		return Result{}, domain.NewOpError(op, subject, domain.ErrVaultNotFound)
	}
	v := cur.Clone()
	v.Configure(c.Config)
	v.LastSeq = c.Seq

	p.vaults[c.LstMint] = v
	return Result{Vault: v.Clone()}, nil
}

// refreshPrice stores an observation on v and re-marks mv's backing by the
// change in v's SOL value.
func refreshPrice(mv *domain.MainVault, v *domain.SecondaryVault, price quant.PriceP32, observedAt int64, seq uint64, ts int64) (*event.PriceUpdateEvent, error) {
	oldPrice := v.LstSolPriceP32
	oldSol, err := v.SolValue()
	if err != nil {
		return nil, err
	}
	if !v.RefreshPrice(price, observedAt) {
		return nil, nil
	}
	newSol, err := v.SolValue()
	if err != nil {
		return nil, err
	}
	if err := mv.Remark(oldSol, newSol); err != nil {
		return nil, err
	}
	return &event.PriceUpdateEvent{
		BaseEvent:                event.BaseEvent{Seq: seq, Ts: ts},
		MainState:                mv.ID,
		LstMint:                  v.LstMint,
		OldPrice:                 oldPrice,
		NewPrice:                 price,
		ObservedAt:               observedAt,
		OldSolValue:              oldSol,
		NewSolValue:              newSol,
		MainVaultBackingSolValue: mv.BackingSolValue,
		MpsolSupply:              mv.ShareMintSupply,
	}, nil
}

func (p *Pool) updatePrice(c *event.UpdatePriceCommand) (Result, error) {
	op, subject := string(c.GetType()), c.LstMint.String()
	if !p.main.IsPriceAuthority(c.Caller) {
		return Result{}, domain.NewOpError(op, subject, domain.ErrUnauthorized)
	}
	cur, ok := p.vaults[c.LstMint]
	if !ok {
		return Result{}, domain.NewOpError(op, subject, domain.ErrVaultNotFound)
	}
	mv, v := p.main.Clone(), cur.Clone()

	ev, err := refreshPrice(mv, v, c.Price, c.ObservedAt, c.Seq, c.Ts)
	if err != nil {
		return Result{}, domain.NewOpError(op, subject, err)
	}
	if ev == nil {
		return Result{Applied: false, Vault: cur.Clone()}, nil
	}
	mv.LastSeq, v.LastSeq = c.Seq, c.Seq

	p.main = mv
	p.vaults[c.LstMint] = v
	p.verify(v)
	return Result{Applied: true, Main: mv.Clone(), Vault: v.Clone(), Notifications: []event.Notification{*ev}}, nil
}

func (p *Pool) stake(c *event.StakeCommand) (Result, error) {
	op, subject := string(c.GetType()), c.LstMint.String()
	cur, ok := p.vaults[c.LstMint]
	if !ok {
		return Result{}, domain.NewOpError(op, subject, domain.ErrVaultNotFound)
	}
	fail := func(err error) (Result, error) {
		return Result{}, domain.NewOpError(op, subject, err)
	}

	mv, v := p.main.Clone(), cur.Clone()
	if v.DepositsDisabled {
		return fail(domain.ErrDepositsInThisVaultAreDisabled)
	}
	if v.LstSolPriceP32 == 0 {
		return fail(domain.ErrDivisionByZeroPrice)
	}
	if err := v.CheckPriceFresh(c.Ts, mv.MaxPriceAge); err != nil {
		return fail(err)
	}
	if c.LstAmount < mv.MinMovementLamports || c.LstAmount == 0 {
		return fail(domain.ErrAmountTooSmall)
	}
	sol, err := v.ToSolValue(c.LstAmount)
	if err != nil {
		return fail(err)
	}
	if sol < mv.MinMovementLamports || sol == 0 {
		return fail(domain.ErrAmountTooSmall)
	}
	if err := v.RecordDeposit(c.LstAmount); err != nil {
		return fail(err)
	}
	quote, err := mv.Deposit(sol)
	if err != nil {
		return fail(err)
	}
	mv.LastSeq, v.LastSeq = c.Seq, c.Seq

	p.main = mv
	p.vaults[c.LstMint] = v
	if err := p.shares.Mint(c.Caller, quote.NetShares); err != nil {
		panic(fmt.Sprintf("SHARE_MINT_AFTER_COMMIT: %v", err))
	}
	p.verify(v)

	ev := event.StakeEvent{
		BaseEvent:                event.BaseEvent{Seq: c.Seq, Ts: c.Ts},
		MainState:                mv.ID,
		TokenMint:                c.LstMint,
		Depositor:                c.Caller,
		Amount:                   c.LstAmount,
		DepositedSolValue:        sol,
		MpsolReceived:            quote.NetShares,
		DepositFee:               quote.FeeShares,
		MainVaultBackingSolValue: mv.BackingSolValue,
		MpsolSupply:              mv.ShareMintSupply,
	}
	return Result{
		Main:          mv.Clone(),
		Vault:         v.Clone(),
		Deposit:       quote,
		SolValue:      sol,
		LstAmount:     c.LstAmount,
		Notifications: []event.Notification{ev},
	}, nil
}

// TicketID derives the id of the ticket created by the command at seq, so
// replaying the log recreates the same ids.
func TicketID(mainState solana.PublicKey, seq uint64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "mpsol/%s/ticket/%d", mainState, seq))
}

func (p *Pool) unstake(c *event.UnstakeCommand) (Result, error) {
	op, subject := string(c.GetType()), c.Caller.String()
	fail := func(err error) (Result, error) {
		return Result{}, domain.NewOpError(op, subject, err)
	}

	if c.Shares == 0 {
		return fail(domain.ErrAmountTooSmall)
	}
	if p.shares.BalanceOf(c.Caller) < c.Shares {
		return fail(domain.ErrInsufficientShareBalance)
	}
	mv := p.main.Clone()
	sol, err := mv.Unstake(c.Shares)
	if err != nil {
		return fail(err)
	}
	if sol < mv.MinMovementLamports || sol == 0 {
		return fail(domain.ErrAmountTooSmall)
	}
	ticket, err := domain.NewUnstakeTicket(TicketID(mv.ID, c.Seq), mv.ID, c.Caller, sol, c.Ts, mv.UnstakeTicketWaitingPeriod)
	if err != nil {
		return fail(err)
	}
	if _, exists := p.tickets[ticket.ID]; exists {
		panic(fmt.Sprintf("TICKET_ID_COLLISION: %s at seq %d", ticket.ID, c.Seq))
	}
	mv.LastSeq, ticket.LastSeq = c.Seq, c.Seq

	p.main = mv
	p.tickets[ticket.ID] = ticket
	if err := p.shares.Burn(c.Caller, c.Shares); err != nil {
		panic(fmt.Sprintf("SHARE_BURN_AFTER_COMMIT: %v", err))
	}
	p.verify(nil)

	ev := event.UnstakeEvent{
		BaseEvent:                event.BaseEvent{Seq: c.Seq, Ts: c.Ts},
		MainState:                mv.ID,
		Beneficiary:              c.Caller,
		TicketID:                 ticket.ID,
		MpsolBurned:              c.Shares,
		TicketSolValue:           sol,
		TicketDueTimestamp:       ticket.TicketDueTimestamp,
		MainVaultBackingSolValue: mv.BackingSolValue,
		MpsolSupply:              mv.ShareMintSupply,
	}
	t := *ticket
	return Result{Main: mv.Clone(), Ticket: &t, SolValue: sol, Notifications: []event.Notification{ev}}, nil
}

func (p *Pool) ticketClaim(c *event.TicketClaimCommand) (Result, error) {
	op, subject := string(c.GetType()), c.TicketID.String()
	fail := func(err error) (Result, error) {
		return Result{}, domain.NewOpError(op, subject, err)
	}

	cur, ok := p.tickets[c.TicketID]
	if !ok {
		return fail(domain.ErrTicketNotFound)
	}
	if !cur.Beneficiary.Equals(c.Caller) {
		return fail(domain.ErrNotBeneficiary)
	}
	// the beneficiary gains from a low price, so only the price authority may attach one
	if c.FreshPrice != nil && !p.main.IsPriceAuthority(c.Caller) {
		return fail(domain.ErrUnauthorized)
	}
	curVault, ok := p.vaults[c.LstMint]
	if !ok {
		return fail(domain.ErrVaultNotFound)
	}
	if !cur.IsDue(c.Ts) {
		return fail(domain.ErrTicketNotYetDue)
	}
	if c.SolAmount > cur.TicketSolValue {
		return fail(domain.ErrClaimExceedsTicketValue)
	}
	mv, v, t := p.main.Clone(), curVault.Clone(), *cur
	if c.SolAmount < t.TicketSolValue && c.SolAmount < mv.MinMovementLamports {
		return fail(domain.ErrCantLeaveDustInTicket)
	}
	if c.SolAmount == 0 {
		return fail(domain.ErrAmountTooSmall)
	}

	var notes []event.Notification
	if c.FreshPrice != nil {
		ev, err := refreshPrice(mv, v, c.FreshPrice.Price, c.FreshPrice.ObservedAt, c.Seq, c.Ts)
		if err != nil {
			return fail(err)
		}
		if ev != nil {
			notes = append(notes, *ev)
		}
	}

	lst, err := v.FromSolValue(c.SolAmount)
	if err != nil {
		return fail(err)
	}
	if err := v.RecordWithdrawal(lst); err != nil {
		return fail(err)
	}
	ticketValue := t.TicketSolValue
	closed, err := t.Debit(c.SolAmount)
	if err != nil {
		return fail(err)
	}
	if err := mv.SettleTicketClaim(ticketValue, c.SolAmount); err != nil {
		return fail(err)
	}
	v.TicketsTargetSolAmount = safe.SaturatingSub(v.TicketsTargetSolAmount, c.SolAmount)
	mv.LastSeq, v.LastSeq, t.LastSeq = c.Seq, c.Seq, c.Seq

	p.main = mv
	p.vaults[c.LstMint] = v
	if closed {
		delete(p.tickets, t.ID)
	} else {
		p.tickets[t.ID] = &t
	}
	p.verify(v)

	notes = append(notes, event.TicketClaimEvent{
		BaseEvent:         event.BaseEvent{Seq: c.Seq, Ts: c.Ts},
		MainState:         mv.ID,
		TicketID:          t.ID,
		Beneficiary:       t.Beneficiary,
		LstMint:           c.LstMint,
		SolClaimed:        c.SolAmount,
		LstDelivered:      lst,
		RemainingSolValue: t.TicketSolValue,
		Closed:            closed,
	})
	ticketCopy := t
	return Result{
		Main:          mv.Clone(),
		Vault:         v.Clone(),
		Ticket:        &ticketCopy,
		TicketClosed:  closed,
		SolValue:      c.SolAmount,
		LstAmount:     lst,
		Applied:       c.FreshPrice != nil && len(notes) > 1,
		Notifications: notes,
	}, nil
}

// vaultForAuthority loads a vault copy after checking the caller against allowed.
func (p *Pool) vaultForAuthority(op string, mint, caller solana.PublicKey, allowed func(solana.PublicKey) bool) (*domain.SecondaryVault, error) {
	if !allowed(caller) {
		return nil, domain.NewOpError(op, mint.String(), domain.ErrUnauthorized)
	}
	cur, ok := p.vaults[mint]
	if !ok {
		return nil, domain.NewOpError(op, mint.String(), domain.ErrVaultNotFound)
	}
	return cur.Clone(), nil
}

func (p *Pool) attachStrategy(c *event.AttachStrategyCommand) (Result, error) {
	op := string(c.GetType())
	v, err := p.vaultForAuthority(op, c.LstMint, c.Caller, p.main.IsAdmin)
	if err != nil {
		return Result{}, err
	}
	if err := v.AttachStrategy(c.Strategy, c.Ts); err != nil {
		return Result{}, domain.NewOpError(op, c.LstMint.String(), err)
	}
	v.LastSeq = c.Seq

	p.vaults[c.LstMint] = v
	return Result{Vault: v.Clone()}, nil
}

func (p *Pool) transferToStrategy(c *event.TransferToStrategyCommand) (Result, error) {
	op := string(c.GetType())
	v, err := p.vaultForAuthority(op, c.LstMint, c.Caller, p.main.IsRebalancer)
	if err != nil {
		return Result{}, err
	}
	if c.LstAmount > v.AvailableForStrategies() {
		return Result{}, domain.NewOpError(op, c.LstMint.String(), domain.ErrInsufficientVaultBalance)
	}
	if err := v.TransferToStrategy(c.Strategy, c.LstAmount, c.Ts); err != nil {
		return Result{}, domain.NewOpError(op, c.LstMint.String(), err)
	}
	v.LastSeq = c.Seq

	p.vaults[c.LstMint] = v
	p.verify(v)
	return Result{Vault: v.Clone(), LstAmount: c.LstAmount}, nil
}

func (p *Pool) returnFromStrategy(c *event.ReturnFromStrategyCommand) (Result, error) {
	op := string(c.GetType())
	v, err := p.vaultForAuthority(op, c.LstMint, c.Caller, p.main.IsRebalancer)
	if err != nil {
		return Result{}, err
	}
	if err := v.ReturnFromStrategy(c.Strategy, c.LstAmount, c.Ts); err != nil {
		return Result{}, domain.NewOpError(op, c.LstMint.String(), err)
	}
	v.LastSeq = c.Seq

	p.vaults[c.LstMint] = v
	p.verify(v)
	return Result{Vault: v.Clone(), LstAmount: c.LstAmount}, nil
}

func (p *Pool) updateStrategyAmount(c *event.UpdateStrategyAmountCommand) (Result, error) {
	op, subject := string(c.GetType()), c.LstMint.String()
	v, err := p.vaultForAuthority(op, c.LstMint, c.Caller, p.main.IsRebalancer)
	if err != nil {
		return Result{}, err
	}
	fail := func(err error) (Result, error) {
		return Result{}, domain.NewOpError(op, subject, err)
	}
	if v.LstSolPriceP32 == 0 {
		return fail(domain.ErrDivisionByZeroPrice)
	}

	mv := p.main.Clone()
	oldSol, err := v.SolValue()
	if err != nil {
		return fail(err)
	}
	prev, err := v.UpdateStrategyAmount(c.Strategy, c.LstAmount, c.Ts)
	if err != nil {
		return fail(err)
	}
	newSol, err := v.SolValue()
	if err != nil {
		return fail(err)
	}
	if err := mv.Remark(oldSol, newSol); err != nil {
		return fail(err)
	}

	var feeShares uint64
	if newSol > oldSol && mv.PerformanceFeeBp > 0 && mv.TreasuryShareAccount != nil {
		feeSol, err := quant.ApplyBp(newSol-oldSol, mv.PerformanceFeeBp)
		if err != nil {
			return fail(domain.ArithmeticError(err))
		}
		if feeShares, err = mv.MintFeeShares(feeSol); err != nil {
			return fail(err)
		}
	}
	mv.LastSeq, v.LastSeq = c.Seq, c.Seq

	p.main = mv
	p.vaults[c.LstMint] = v
	if feeShares > 0 {
		if err := p.shares.Mint(*mv.TreasuryShareAccount, feeShares); err != nil {
			panic(fmt.Sprintf("SHARE_MINT_AFTER_COMMIT: %v", err))
		}
	}
	p.verify(v)

	ev := event.StrategyEvent{
		BaseEvent:                event.BaseEvent{Seq: c.Seq, Ts: c.Ts},
		MainState:                mv.ID,
		LstMint:                  c.LstMint,
		Strategy:                 c.Strategy,
		PreviousLstAmount:        prev,
		LstAmount:                c.LstAmount,
		PerformanceFeeShares:     feeShares,
		MainVaultBackingSolValue: mv.BackingSolValue,
		MpsolSupply:              mv.ShareMintSupply,
	}
	return Result{Main: mv.Clone(), Vault: v.Clone(), LstAmount: c.LstAmount, Notifications: []event.Notification{ev}}, nil
}

func (p *Pool) setTicketsTarget(c *event.SetTicketsTargetCommand) (Result, error) {
	op := string(c.GetType())
	v, err := p.vaultForAuthority(op, c.LstMint, c.Caller, p.main.IsOperator)
	if err != nil {
		return Result{}, err
	}
	v.TicketsTargetSolAmount = c.SolAmount
	v.LastSeq = c.Seq

	p.vaults[c.LstMint] = v
	return Result{Vault: v.Clone()}, nil
}

// verify panics when committed state breaks an invariant.
func (p *Pool) verify(v *domain.SecondaryVault) {
	if v != nil {
		v.VerifyInvariant()
	}
	if p.shares.Supply() != p.main.ShareMintSupply {
		panic(fmt.Sprintf("SHARE_INVARIANT_SUPPLY_MISMATCH: book=%d mint=%d", p.shares.Supply(), p.main.ShareMintSupply))
	}
}

// VerifyAll checks invariants on every entity.
func (p *Pool) VerifyAll() {
	for _, v := range p.vaults {
		v.VerifyInvariant()
	}
	var mintSupply, outstanding uint64
	if p.main != nil {
		mintSupply = p.main.ShareMintSupply
		outstanding = p.main.OutstandingTicketsSolValue
	}
	p.shares.VerifyInvariant(mintSupply)

	var ticketSum uint64
	for _, t := range p.tickets {
		ticketSum += t.TicketSolValue
	}
	if ticketSum != outstanding {
		panic(fmt.Sprintf("TICKET_INVARIANT_OUTSTANDING_MISMATCH: tickets=%d outstanding=%d", ticketSum, outstanding))
	}
}

// MainVault returns a copy of the main vault.
func (p *Pool) MainVault() (*domain.MainVault, bool) {
	if p.main == nil {
		return nil, false
	}
	return p.main.Clone(), true
}

// SecondaryVault returns a copy of the vault for mint.
func (p *Pool) SecondaryVault(mint solana.PublicKey) (*domain.SecondaryVault, bool) {
	v, ok := p.vaults[mint]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// SecondaryVaults returns copies of all vaults in whitelist order.
func (p *Pool) SecondaryVaults() []*domain.SecondaryVault {
	if p.main == nil {
		return nil
	}
	out := make([]*domain.SecondaryVault, 0, len(p.vaults))
	for _, mint := range p.main.WhitelistedVaults {
		if v, ok := p.vaults[mint]; ok {
			out = append(out, v.Clone())
		}
	}
	return out
}

// Ticket returns a copy of an open ticket.
func (p *Pool) Ticket(id uuid.UUID) (*domain.UnstakeTicket, bool) {
	t, ok := p.tickets[id]
	if !ok {
		return nil, false
	}
	c := *t
	return &c, true
}

// Tickets returns copies of all open tickets ordered by due time.
func (p *Pool) Tickets() []*domain.UnstakeTicket {
	out := make([]*domain.UnstakeTicket, 0, len(p.tickets))
	for _, t := range p.tickets {
		c := *t
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *domain.UnstakeTicket) int {
		if c := cmp.Compare(a.TicketDueTimestamp, b.TicketDueTimestamp); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

// ShareBalance returns the owner's mpSOL balance.
func (p *Pool) ShareBalance(owner solana.PublicKey) uint64 {
	return p.shares.BalanceOf(owner)
}
