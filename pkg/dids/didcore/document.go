package didcore

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/tbd54566975/tbdex-go/pkg/crypto/jwk"
)

const (
	// KnownDIDContext is the JSON-LD context of DID Core documents.
	KnownDIDContext = "https://www.w3.org/ns/did/v1"

	// JSONWebKey2020Type is the verification method type for publicKeyJwk entries.
	JSONWebKey2020Type = "JsonWebKey2020"
	// JSONWebKeyType is the newer, unversioned name of the same type.
	JSONWebKeyType = "JsonWebKey"
)

// Purpose names a verification relationship.
type Purpose string

const (
	PurposeAuthentication       Purpose = "authentication"
	PurposeAssertionMethod      Purpose = "assertionMethod"
	PurposeKeyAgreement         Purpose = "keyAgreement"
	PurposeCapabilityDelegation Purpose = "capabilityDelegation"
	PurposeCapabilityInvocation Purpose = "capabilityInvocation"
)

// Document is a DID Document (https://www.w3.org/TR/did-core/#did-documents).
type Document struct {
	Context              any                        `json:"@context,omitempty"`
	ID                   string                     `json:"id" validate:"required"`
	AlsoKnownAs          []string                   `json:"alsoKnownAs,omitempty"`
	Controller           StringOrSlice              `json:"controller,omitempty"`
	VerificationMethod   []VerificationMethod       `json:"verificationMethod,omitempty"`
	Service              []Service                  `json:"service,omitempty"`
	Authentication       []VerificationRelationship `json:"authentication,omitempty"`
	AssertionMethod      []VerificationRelationship `json:"assertionMethod,omitempty"`
	KeyAgreement         []VerificationRelationship `json:"keyAgreement,omitempty"`
	CapabilityDelegation []VerificationRelationship `json:"capabilityDelegation,omitempty"`
	CapabilityInvocation []VerificationRelationship `json:"capabilityInvocation,omitempty"`
}

// VerificationMethod is a public key entry of a DID Document. Exactly one public key member is expected to be set.
type VerificationMethod struct {
	ID                 string   `json:"id" validate:"required"`
	Type               string   `json:"type" validate:"required"`
	Controller         string   `json:"controller" validate:"required"`
	PublicKeyJWK       *jwk.JWK `json:"publicKeyJwk,omitempty"`
	PublicKeyMultibase string   `json:"publicKeyMultibase,omitempty"`
	PublicKeyBase58    string   `json:"publicKeyBase58,omitempty"`
}

// Service is a service endpoint entry of a DID Document.
type Service struct {
	ID              string        `json:"id" validate:"required"`
	Type            string        `json:"type" validate:"required"`
	ServiceEndpoint StringOrSlice `json:"serviceEndpoint" validate:"required"`
}

// VerificationRelationship is an entry of a relationship list: either a reference to a verification method of the
// document or an embedded method.
type VerificationRelationship struct {
	Reference string
	Method    *VerificationMethod
}

// ReferenceTo creates a relationship entry that refers to a verification method by id.
func ReferenceTo(id string) VerificationRelationship {
	return VerificationRelationship{Reference: id}
}

// Embedded creates a relationship entry that embeds a verification method.
func Embedded(vm VerificationMethod) VerificationRelationship {
	return VerificationRelationship{Method: &vm}
}

func (v VerificationRelationship) MarshalJSON() ([]byte, error) {
	if v.Method != nil {
		return json.Marshal(v.Method)
	}
	return json.Marshal(v.Reference)
}

func (v *VerificationRelationship) UnmarshalJSON(data []byte) error {
	var reference string
	if err := json.Unmarshal(data, &reference); err == nil {
		*v = VerificationRelationship{Reference: reference}
		return nil
	}
	var method VerificationMethod
	if err := json.Unmarshal(data, &method); err != nil {
		return errors.Wrap(err, "verification relationship must be a string or a verification method")
	}
	*v = VerificationRelationship{Method: &method}
	return nil
}

// StringOrSlice holds JSON members that may be a single string or an array of strings.
type StringOrSlice []string

func (s StringOrSlice) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

func (s *StringOrSlice) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringOrSlice{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.Wrap(err, "expected a string or an array of strings")
	}
	*s = many
	return nil
}

// IsEmpty reports whether the document has no id.
func (d *Document) IsEmpty() bool {
	return d == nil || d.ID == ""
}

// Relationship returns the relationship list for purpose.
func (d *Document) Relationship(purpose Purpose) []VerificationRelationship {
	switch purpose {
	case PurposeAuthentication:
		return d.Authentication
	case PurposeAssertionMethod:
		return d.AssertionMethod
	case PurposeKeyAgreement:
		return d.KeyAgreement
	case PurposeCapabilityDelegation:
		return d.CapabilityDelegation
	case PurposeCapabilityInvocation:
		return d.CapabilityInvocation
	}
	return nil
}

// AddVerificationMethod appends vm and references it from each of the given relationships.
func (d *Document) AddVerificationMethod(vm VerificationMethod, purposes ...Purpose) {
	d.VerificationMethod = append(d.VerificationMethod, vm)
	ref := ReferenceTo(vm.ID)
	for _, purpose := range purposes {
		switch purpose {
		case PurposeAuthentication:
			d.Authentication = append(d.Authentication, ref)
		case PurposeAssertionMethod:
			d.AssertionMethod = append(d.AssertionMethod, ref)
		case PurposeKeyAgreement:
			d.KeyAgreement = append(d.KeyAgreement, ref)
		case PurposeCapabilityDelegation:
			d.CapabilityDelegation = append(d.CapabilityDelegation, ref)
		case PurposeCapabilityInvocation:
			d.CapabilityInvocation = append(d.CapabilityInvocation, ref)
		}
	}
}

// AddService appends a service endpoint.
func (d *Document) AddService(service Service) {
	d.Service = append(d.Service, service)
}

// absoluteID resolves a method id that is a bare fragment against its controller.
func (d *Document) absoluteID(vm VerificationMethod) string {
	if !strings.HasPrefix(vm.ID, "#") {
		return vm.ID
	}
	controller := vm.Controller
	if controller == "" {
		controller = d.ID
	}
	return controller + vm.ID
}

// Dereference resolves a relationship entry against the document. Embedded methods are returned as-is; references
// match only this document's own verification methods.
func (d *Document) Dereference(ref VerificationRelationship) (*VerificationMethod, bool) {
	if ref.Method != nil {
		return ref.Method, true
	}
	return d.DereferenceID(ref.Reference)
}

// DereferenceID finds the verification method whose absolute id equals id, or ends with id when id is a bare
// fragment such as "#0".
func (d *Document) DereferenceID(id string) (*VerificationMethod, bool) {
	if id == "" {
		return nil, false
	}
	for i := range d.VerificationMethod {
		vm := &d.VerificationMethod[i]
		absolute := d.absoluteID(*vm)
		if absolute == id {
			return vm, true
		}
		if strings.HasPrefix(id, "#") && strings.HasSuffix(absolute, id) {
			return vm, true
		}
	}
	return nil, false
}

// SelectVerificationMethod returns the first method usable for purpose. With an empty purpose the first verification
// method of the document is returned.
func (d *Document) SelectVerificationMethod(purpose Purpose) (*VerificationMethod, error) {
	if purpose == "" {
		if len(d.VerificationMethod) == 0 {
			return nil, errors.Errorf("no verification methods found in %s", d.ID)
		}
		return &d.VerificationMethod[0], nil
	}
	for _, ref := range d.Relationship(purpose) {
		if vm, ok := d.Dereference(ref); ok {
			return vm, nil
		}
	}
	return nil, errors.Errorf("no verification method found for purpose %s in %s", purpose, d.ID)
}

// GetAbsoluteResourceID returns the absolute id of a verification method of this document.
func (d *Document) GetAbsoluteResourceID(vm VerificationMethod) string {
	return d.absoluteID(vm)
}
