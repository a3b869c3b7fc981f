package xml

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/beevik/etree"

	"github.com/rezonia/nfe-validator/internal/parser/nfe"
)

// XMLDSigNamespace is the namespace of the Signature element
const XMLDSigNamespace = "http://www.w3.org/2000/09/xmldsig#"

// Signed is the signed part of an NF-e: infNFe and its sibling Signature
type Signed struct {
	Document  *etree.Document
	InfNFe    *etree.Element
	Signature *etree.Element
	// ID is infNFe/@Id, "NFe" followed by the access key
	ID           string
	ReferenceURI string
}

// AccessKey returns the ID without its "NFe" prefix
func (s *Signed) AccessKey() string {
	return strings.TrimPrefix(s.ID, "NFe")
}

// Locate parses data and finds NFe/infNFe and NFe/Signature. Inside an
// nfeProc envelope the protocol signature is ignored.
func Locate(data []byte) (*Signed, error) {
	doc, err := nfe.ReadDocument(data)
	if err != nil {
		return nil, err
	}

	nfeEl := findNFe(doc.Root())
	if nfeEl == nil {
		return nil, fmt.Errorf("no NFe element in namespace %s", nfe.Namespace)
	}

	inf := childNS(nfeEl, "infNFe", nfe.Namespace)
	if inf == nil {
		return nil, fmt.Errorf("NFe has no infNFe element")
	}

	signed := &Signed{
		Document: doc,
		InfNFe:   inf,
		ID:       inf.SelectAttrValue("Id", ""),
	}

	signed.Signature = childNS(nfeEl, "Signature", XMLDSigNamespace)
	if signed.Signature != nil {
		if ref := descendant(signed.Signature, "SignedInfo", "Reference"); ref != nil {
			signed.ReferenceURI = ref.SelectAttrValue("URI", "")
		}
	}

	return signed, nil
}

// Enveloped returns a detached copy of infNFe with the Signature appended as
// its last child, the shape an enveloped-signature validator expects. The
// default namespace is declared explicitly because NF-e digests are computed
// over infNFe as it stands inside NFe.
func (s *Signed) Enveloped() *etree.Element {
	inf := s.InfNFe.Copy()
	if inf.SelectAttr("xmlns") == nil {
		inf.CreateAttr("xmlns", s.InfNFe.NamespaceURI())
	}
	inf.AddChild(s.Signature.Copy())
	return inf
}

// Certificates decodes every X509Certificate in KeyInfo, signer first
func (s *Signed) Certificates() ([][]byte, error) {
	x509Data := descendant(s.Signature, "KeyInfo", "X509Data")
	if x509Data == nil {
		return nil, fmt.Errorf("no X509Data in KeyInfo")
	}

	var certs [][]byte
	for _, el := range x509Data.ChildElements() {
		if el.Tag != "X509Certificate" {
			continue
		}
		der, err := base64.StdEncoding.DecodeString(stripSpace(el.Text()))
		if err != nil {
			return nil, fmt.Errorf("decode X509Certificate: %w", err)
		}
		certs = append(certs, der)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no X509Certificate in KeyInfo")
	}
	return certs, nil
}

// IssuedAt reads ide/dhEmi or ide/dEmi. ok is false when neither parses.
func (s *Signed) IssuedAt() (time.Time, bool) {
	ide := childNS(s.InfNFe, "ide", nfe.Namespace)
	if ide == nil {
		return time.Time{}, false
	}
	if el := childNS(ide, "dhEmi", nfe.Namespace); el != nil {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(el.Text())); err == nil {
			return t, true
		}
	}
	if el := childNS(ide, "dEmi", nfe.Namespace); el != nil {
		if t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(el.Text()), nfe.DefaultLocation); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EmitterCNPJ reads emit/CNPJ
func (s *Signed) EmitterCNPJ() string {
	if emit := childNS(s.InfNFe, "emit", nfe.Namespace); emit != nil {
		if el := childNS(emit, "CNPJ", nfe.Namespace); el != nil {
			return strings.TrimSpace(el.Text())
		}
	}
	return ""
}

// CanLocate is a cheap pre-check on raw bytes
func CanLocate(data []byte) bool {
	return bytes.Contains(data, []byte("infNFe")) && bytes.Contains(data, []byte("Signature"))
}

func findNFe(el *etree.Element) *etree.Element {
	if el.Tag == "NFe" && el.NamespaceURI() == nfe.Namespace {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findNFe(child); found != nil {
			return found
		}
	}
	return nil
}

func childNS(el *etree.Element, local, ns string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == local && child.NamespaceURI() == ns {
			return child
		}
	}
	return nil
}

// descendant follows a chain of local names within the XMLDSig namespace
func descendant(el *etree.Element, path ...string) *etree.Element {
	for _, local := range path {
		if el = childNS(el, local, XMLDSigNamespace); el == nil {
			return nil
		}
	}
	return el
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
