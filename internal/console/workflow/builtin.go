package workflow

// Entity types known to the console.
const (
	EntityDriver            = "driver"
	EntityRider             = "rider"
	EntityVehicle           = "vehicle"
	EntityTrip              = "trip"
	EntityCarDriver         = "carDriverAssignment"
	EntityWalletTransaction = "walletTransaction"
	EntityContactTicket     = "contactTicket"
	EntityCoupon            = "coupon"
	EntityOffer             = "offer"
	EntityCommission        = "commission"
)

// Status tokens shared by several entity types.
const (
	StatusPending    = "Pending"
	StatusActive     = "Active"
	StatusInactive   = "Inactive"
	StatusRejected   = "Rejected"
	StatusBlocked    = "Blocked"
	StatusApproved   = "Approved"
	StatusAccepted   = "Accepted"
	StatusArrived    = "Arrived"
	StatusStarted    = "Started"
	StatusCompleted  = "Completed"
	StatusCancelled  = "Cancelled"
	StatusOnRequest  = "OnRequest"
	StatusLinked     = "Linked"
	StatusLeaved     = "Leaved"
	StatusOpen       = "Open"
	StatusInProgress = "InProgress"
	StatusResolved   = "Resolved"
	StatusClosed     = "Closed"
	StatusExpired    = "Expired"
)

// Wallet transactions store lower-case tokens; the console shows labels.
const (
	WalletPending  = "pending"
	WalletAccepted = "accepted"
	WalletRejected = "rejected"
)

func warning(name string) StatusDescriptor {
	return StatusDescriptor{Name: name, Label: "status." + name, TextColor: "#B54708", BackgroundColor: "#FFFAEB", BorderColor: "#FEDF89"}
}

func success(name string) StatusDescriptor {
	return StatusDescriptor{Name: name, Label: "status." + name, TextColor: "#027A48", BackgroundColor: "#ECFDF3", BorderColor: "#A6F4C5"}
}

func danger(name string) StatusDescriptor {
	return StatusDescriptor{Name: name, Label: "status." + name, TextColor: "#B42318", BackgroundColor: "#FEF3F2", BorderColor: "#FECDCA"}
}

func info(name string) StatusDescriptor {
	return StatusDescriptor{Name: name, Label: "status." + name, TextColor: "#175CD3", BackgroundColor: "#EFF8FF", BorderColor: "#B2DDFF"}
}

func neutral(name string) StatusDescriptor {
	d := DefaultDescriptor(name)
	d.Label = "status." + name
	return d
}

// Builtin returns the workflow table of the console's entity types.
func Builtin() []Definition {
	return []Definition{
		{
			Entity:   EntityDriver,
			Statuses: []StatusDescriptor{warning(StatusPending), success(StatusActive), danger(StatusRejected), danger(StatusBlocked)},
			Transitions: map[string][]string{
				StatusPending:  {StatusActive, StatusRejected},
				StatusActive:   {StatusBlocked},
				StatusBlocked:  {StatusActive},
				StatusRejected: {StatusPending},
			},
		},
		{
			Entity:   EntityRider,
			Statuses: []StatusDescriptor{success(StatusActive), danger(StatusBlocked)},
			Transitions: map[string][]string{
				StatusActive:  {StatusBlocked},
				StatusBlocked: {StatusActive},
			},
		},
		{
			Entity:   EntityVehicle,
			Statuses: []StatusDescriptor{warning(StatusPending), success(StatusApproved), danger(StatusRejected)},
			Transitions: map[string][]string{
				StatusPending:  {StatusApproved, StatusRejected},
				StatusApproved: {StatusRejected},
				StatusRejected: {StatusPending},
			},
		},
		{
			Entity: EntityTrip,
			Statuses: []StatusDescriptor{
				warning(StatusPending), info(StatusAccepted), info(StatusArrived),
				info(StatusStarted), success(StatusCompleted), danger(StatusCancelled),
			},
			Transitions: map[string][]string{
				StatusPending:  {StatusCancelled},
				StatusAccepted: {StatusCancelled},
				StatusArrived:  {StatusCancelled},
				StatusStarted:  {StatusCompleted, StatusCancelled},
			},
			Terminal: []string{StatusCompleted, StatusCancelled},
		},
		{
			Entity:   EntityCarDriver,
			Statuses: []StatusDescriptor{warning(StatusOnRequest), success(StatusLinked), neutral(StatusLeaved), danger(StatusRejected)},
			Transitions: map[string][]string{
				StatusOnRequest: {StatusLinked, StatusRejected},
				StatusLinked:    {StatusOnRequest, StatusLeaved, StatusRejected},
			},
			Terminal: []string{StatusLeaved, StatusRejected},
		},
		{
			Entity:   EntityWalletTransaction,
			Statuses: []StatusDescriptor{warning(WalletPending), success(WalletAccepted), danger(WalletRejected)},
			Transitions: map[string][]string{
				WalletPending: {WalletAccepted, WalletRejected},
			},
			Terminal: []string{WalletAccepted, WalletRejected},
			Aliases: map[string]string{
				StatusPending:  WalletPending,
				StatusAccepted: WalletAccepted,
				StatusRejected: WalletRejected,
			},
		},
		{
			Entity:   EntityContactTicket,
			Statuses: []StatusDescriptor{warning(StatusOpen), info(StatusInProgress), success(StatusResolved), neutral(StatusClosed)},
			Transitions: map[string][]string{
				StatusOpen:       {StatusInProgress, StatusResolved, StatusClosed},
				StatusInProgress: {StatusResolved, StatusClosed},
			},
			Terminal: []string{StatusResolved, StatusClosed},
		},
		{
			Entity:   EntityCoupon,
			Statuses: []StatusDescriptor{success(StatusActive), neutral(StatusInactive), danger(StatusExpired)},
			Transitions: map[string][]string{
				StatusActive:   {StatusInactive},
				StatusInactive: {StatusActive},
			},
			Terminal: []string{StatusExpired},
		},
		{
			Entity:   EntityOffer,
			Statuses: []StatusDescriptor{success(StatusActive), neutral(StatusInactive)},
			Transitions: map[string][]string{
				StatusActive:   {StatusInactive},
				StatusInactive: {StatusActive},
			},
		},
		{
			Entity:   EntityCommission,
			Statuses: []StatusDescriptor{warning(StatusPending), success(StatusCompleted)},
			Transitions: map[string][]string{
				StatusPending: {StatusCompleted},
			},
			Terminal: []string{StatusCompleted},
		},
	}
}

// NewBuiltinRegistry builds the registry from Builtin. The table is static,
// so a validation failure is a programming error.
func NewBuiltinRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}
