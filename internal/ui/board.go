// Package ui holds the display state that the controller writes and the
// adapters (web page, Discord) render: named text regions, transient alerts,
// section visibility, input clearing and the loading overlay.
package ui

import (
	"sort"
	"sync"
	"time"
)

// Text regions.
const (
	RegionWalletAddress    = "walletAddress"
	RegionWalletBalance    = "walletBalance"
	RegionTotalExpenses    = "totalExpenses"
	RegionExpenseCount     = "expenseCount"
	RegionParticipantCount = "participantCount"
	RegionContractBalance  = "contractBalance"
	RegionYourBalance      = "yourBalance"
	RegionEqualSplit       = "equalSplit"
)

// Alert regions.
const (
	AlertConnect     = "connectWallet"
	AlertContract    = "contractStatus"
	AlertExpense     = "expenseAlert"
	AlertParticipant = "participantAlert"
	AlertContribute  = "contributeAlert"
	AlertSettle      = "settleAlert"
)

// Sections whose visibility the controller toggles.
const (
	SectionConnectButton = "connectWallet"
	SectionWalletInfo    = "walletInfo"
	SectionContractInfo  = "contractInfo"
	SectionParticipants  = "participantsSection"
	SectionHistory       = "transactionHistory"
)

// Input fields.
const (
	InputContractAddress    = "contractAddress"
	InputExpenseDesc        = "expenseDesc"
	InputExpenseAmount      = "expenseAmount"
	InputParticipantAddress = "participantAddress"
	InputContributeAmount   = "contributeAmount"
)

// DefaultAlertTTL is how long an alert stays visible.
const DefaultAlertTTL = 5 * time.Second

type AlertKind string

const (
	AlertSuccess AlertKind = "success"
	AlertError   AlertKind = "error"
	AlertInfo    AlertKind = "info"
)

type Alert struct {
	Message   string    `json:"message"`
	Kind      AlertKind `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConnectAction describes what the connect button does. Mode is "connect"
// when a wallet is configured and "install" otherwise.
type ConnectAction struct {
	Mode  string `json:"mode"`
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

type ParticipantRow struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// View is a point-in-time copy of the board.
type View struct {
	Regions      map[string]string `json:"regions"`
	Alerts       map[string]Alert  `json:"alerts"`
	Sections     map[string]bool   `json:"sections"`
	Inputs       map[string]uint64 `json:"inputs"`
	Participants []ParticipantRow  `json:"participants"`
	Connect      ConnectAction     `json:"connect"`
	Loading      bool              `json:"loading"`
}

// Board is safe for concurrent use.
type Board struct {
	mu           sync.Mutex
	ttl          time.Duration
	now          func() time.Time
	regions      map[string]string
	alerts       map[string]Alert
	sections     map[string]bool
	inputs       map[string]uint64
	participants []ParticipantRow
	connect      ConnectAction
	loading      int
}

type Option func(*Board)

// WithAlertTTL overrides DefaultAlertTTL.
func WithAlertTTL(d time.Duration) Option {
	return func(b *Board) {
		if d > 0 {
			b.ttl = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

func NewBoard(opts ...Option) *Board {
	b := &Board{
		ttl:    DefaultAlertTTL,
		now:    time.Now,
		alerts: make(map[string]Alert),
		inputs: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.resetLocked()
	return b
}

// Reset returns every region and section to the initial, unconnected layout.
// Alerts and input revisions survive so a reset can still be explained.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *Board) resetLocked() {
	b.regions = make(map[string]string)
	b.sections = map[string]bool{
		SectionConnectButton: true,
		SectionWalletInfo:    false,
		SectionContractInfo:  false,
		SectionParticipants:  false,
		SectionHistory:       false,
	}
	b.participants = nil
	if b.connect.Mode == "" {
		b.connect = ConnectAction{Mode: "connect", Label: "Connect Wallet"}
	}
}

func (b *Board) SetText(region, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regions[region] = text
}

// SetTexts writes several regions at once so readers never observe a partial update.
func (b *Board) SetTexts(texts map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range texts {
		b.regions[k] = v
	}
}

func (b *Board) Show(section string, visible bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sections[section] = visible
}

func (b *Board) SetConnectAction(a ConnectAction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connect = a
}

func (b *Board) SetParticipants(rows []ParticipantRow) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.participants = append([]ParticipantRow(nil), rows...)
}

// Alert shows message on region until the alert TTL elapses.
func (b *Board) Alert(region, message string, kind AlertKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts[region] = Alert{Message: message, Kind: kind, ExpiresAt: b.now().Add(b.ttl)}
}

// ClearInputs bumps the revision of each named input; renderers clear a field
// whenever its revision changes.
func (b *Board) ClearInputs(names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range names {
		b.inputs[n]++
	}
}

// BeginLoading raises the loading overlay and returns the func that lowers it.
// Calls nest.
func (b *Board) BeginLoading() func() {
	b.mu.Lock()
	b.loading++
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.loading--
			b.mu.Unlock()
		})
	}
}

// View returns a copy of the board with expired alerts dropped.
func (b *Board) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	v := View{
		Regions:      make(map[string]string, len(b.regions)),
		Alerts:       make(map[string]Alert, len(b.alerts)),
		Sections:     make(map[string]bool, len(b.sections)),
		Inputs:       make(map[string]uint64, len(b.inputs)),
		Participants: append([]ParticipantRow(nil), b.participants...),
		Connect:      b.connect,
		Loading:      b.loading > 0,
	}
	for k, r := range b.regions {
		v.Regions[k] = r
	}
	for k, a := range b.alerts {
		if now.Before(a.ExpiresAt) {
			v.Alerts[k] = a
		} else {
			delete(b.alerts, k)
		}
	}
	for k, s := range b.sections {
		v.Sections[k] = s
	}
	for k, n := range b.inputs {
		v.Inputs[k] = n
	}
	return v
}

// ActiveAlerts lists the visible alerts ordered by region name.
func (v View) ActiveAlerts() []string {
	regions := make([]string, 0, len(v.Alerts))
	for r := range v.Alerts {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		out = append(out, v.Alerts[r].Message)
	}
	return out
}
