package tbdex

// MessageData is the payload of a message. The set of implementations is closed.
type MessageData interface {
	Kind() MessageKind
	isMessageData()
}

// ResourceData is the payload of a resource. The set of implementations is closed.
type ResourceData interface {
	Kind() ResourceKind
	isResourceData()
}

// RFQ asks a PFI for a quote against one of its offerings. It starts an exchange.
type RFQ struct {
	OfferingID string               `json:"offeringId" validate:"required"`
	Payin      SelectedPayinMethod  `json:"payin"`
	Payout     SelectedPayoutMethod `json:"payout"`
	Claims     []string             `json:"claims,omitempty"`
}

type SelectedPayinMethod struct {
	Amount         string         `json:"amount" validate:"required,numeric"`
	Kind           string         `json:"kind" validate:"required"`
	PaymentDetails map[string]any `json:"paymentDetails,omitempty"`
}

type SelectedPayoutMethod struct {
	Kind           string         `json:"kind" validate:"required"`
	PaymentDetails map[string]any `json:"paymentDetails,omitempty"`
}

// Quote is a PFI's response to an RFQ.
type Quote struct {
	ExpiresAt string       `json:"expiresAt" validate:"required"`
	Payin     QuoteDetails `json:"payin"`
	Payout    QuoteDetails `json:"payout"`
}

type QuoteDetails struct {
	CurrencyCode       string              `json:"currencyCode" validate:"required"`
	Amount             string              `json:"amount" validate:"required,numeric"`
	Fee                string              `json:"fee,omitempty" validate:"omitempty,numeric"`
	PaymentInstruction *PaymentInstruction `json:"paymentInstruction,omitempty"`
}

type PaymentInstruction struct {
	Link        string `json:"link,omitempty" validate:"omitempty,url"`
	Instruction string `json:"instruction,omitempty"`
}

// Order accepts a quote.
type Order struct{}

// OrderInstructions tells the customer how to pay in and receive the payout.
type OrderInstructions struct {
	Payin  PaymentInstruction `json:"payin"`
	Payout PaymentInstruction `json:"payout"`
}

// OrderStatus reports the progress of an order.
type OrderStatus struct {
	OrderStatus string `json:"orderStatus" validate:"required"`
	Details     string `json:"details,omitempty"`
}

// Cancel withdraws from an exchange.
type Cancel struct {
	Reason string `json:"reason,omitempty"`
}

// Close ends an exchange.
type Close struct {
	Reason  string `json:"reason,omitempty"`
	Success *bool  `json:"success,omitempty"`
}

func (RFQ) Kind() MessageKind               { return KindRFQ }
func (Quote) Kind() MessageKind             { return KindQuote }
func (Order) Kind() MessageKind             { return KindOrder }
func (OrderInstructions) Kind() MessageKind { return KindOrderInstructions }
func (OrderStatus) Kind() MessageKind       { return KindOrderStatus }
func (Cancel) Kind() MessageKind            { return KindCancel }
func (Close) Kind() MessageKind             { return KindClose }

func (RFQ) isMessageData()               {}
func (Quote) isMessageData()             {}
func (Order) isMessageData()             {}
func (OrderInstructions) isMessageData() {}
func (OrderStatus) isMessageData()       {}
func (Cancel) isMessageData()            {}
func (Close) isMessageData()             {}

// Offering describes a currency pair a PFI is willing to exchange.
type Offering struct {
	Description             string               `json:"description" validate:"required"`
	PayoutUnitsPerPayinUnit string               `json:"payoutUnitsPerPayinUnit" validate:"required,numeric"`
	Payin                   PayinDetails         `json:"payin"`
	Payout                  PayoutDetails        `json:"payout"`
	RequiredClaims          map[string]any       `json:"requiredClaims,omitempty"`
	Cancellation            *CancellationDetails `json:"cancellation,omitempty"`
}

type PayinDetails struct {
	CurrencyCode string        `json:"currencyCode" validate:"required"`
	Min          string        `json:"min,omitempty" validate:"omitempty,numeric"`
	Max          string        `json:"max,omitempty" validate:"omitempty,numeric"`
	Methods      []PayinMethod `json:"methods" validate:"required,min=1,dive"`
}

type PayinMethod struct {
	Kind                   string         `json:"kind" validate:"required"`
	Name                   string         `json:"name,omitempty"`
	Description            string         `json:"description,omitempty"`
	Group                  string         `json:"group,omitempty"`
	RequiredPaymentDetails map[string]any `json:"requiredPaymentDetails,omitempty"`
	Fee                    string         `json:"fee,omitempty" validate:"omitempty,numeric"`
	Min                    string         `json:"min,omitempty" validate:"omitempty,numeric"`
	Max                    string         `json:"max,omitempty" validate:"omitempty,numeric"`
}

type PayoutDetails struct {
	CurrencyCode string         `json:"currencyCode" validate:"required"`
	Min          string         `json:"min,omitempty" validate:"omitempty,numeric"`
	Max          string         `json:"max,omitempty" validate:"omitempty,numeric"`
	Methods      []PayoutMethod `json:"methods" validate:"required,min=1,dive"`
}

type PayoutMethod struct {
	Kind                    string         `json:"kind" validate:"required"`
	EstimatedSettlementTime uint64         `json:"estimatedSettlementTime"`
	Name                    string         `json:"name,omitempty"`
	Description             string         `json:"description,omitempty"`
	Group                   string         `json:"group,omitempty"`
	RequiredPaymentDetails  map[string]any `json:"requiredPaymentDetails,omitempty"`
	Fee                     string         `json:"fee,omitempty" validate:"omitempty,numeric"`
	Min                     string         `json:"min,omitempty" validate:"omitempty,numeric"`
	Max                     string         `json:"max,omitempty" validate:"omitempty,numeric"`
}

type CancellationDetails struct {
	Enabled  bool   `json:"enabled"`
	TermsURL string `json:"termsUrl,omitempty" validate:"omitempty,url"`
	Terms    string `json:"terms,omitempty"`
}

// Balance reports the amount a customer holds with a PFI in one currency.
type Balance struct {
	CurrencyCode string `json:"currencyCode" validate:"required"`
	Available    string `json:"available" validate:"required,numeric"`
}

func (Offering) Kind() ResourceKind { return KindOffering }
func (Balance) Kind() ResourceKind  { return KindBalance }

func (Offering) isResourceData() {}
func (Balance) isResourceData()  {}
