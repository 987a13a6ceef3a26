package distributor

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// The distributor's SOAP contract: every response is an envelope whose
// result element carries a second XML document as text, so each payload
// is parsed twice.

const authExpiredMessage = "Please call GetAuthenticationToken() first"

const authEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">
<soap:Header>
<WebServiceHeader xmlns="http://services.clfdistribution.com/CLFWebOrdering" />
</soap:Header>
<soap:Body>
<GetAuthenticationToken xmlns="http://services.clfdistribution.com/CLFWebOrdering">
<Username>%s</Username>
<Password>%s</Password>
</GetAuthenticationToken>
</soap:Body>
</soap:Envelope>`

const productCodesEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">
<soap:Header>
<WebServiceHeader xmlns="http://services.clfdistribution.com/CLFWebOrdering">
<AuthenticationToken>%s</AuthenticationToken>
</WebServiceHeader>
</soap:Header>
<soap:Body>
<GetProductCodes xmlns="http://services.clfdistribution.com/CLFWebOrdering" />
</soap:Body>
</soap:Envelope>`

const productStockEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">
<soap:Header>
<WebServiceHeader xmlns="http://services.clfdistribution.com/CLFWebOrdering">
<AuthenticationToken>%s</AuthenticationToken>
</WebServiceHeader>
</soap:Header>
<soap:Body>
<GetProductStock xmlns="http://services.clfdistribution.com/CLFWebOrdering">
<productCodesXml>&lt;ProductCodes&gt;&lt;Code&gt;%s&lt;/Code&gt;&lt;/ProductCodes&gt;</productCodesXml>
</GetProductStock>
</soap:Body>
</soap:Envelope>`

const productDataEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">
<soap:Header>
<WebServiceHeader xmlns="http://services.clfdistribution.com/CLFWebOrdering">
<AuthenticationToken>%s</AuthenticationToken>
</WebServiceHeader>
</soap:Header>
<soap:Body>
<GetProductData xmlns="http://services.clfdistribution.com/CLFWebOrdering">
<productCodesXml>&lt;ProductCodes&gt;&lt;Code&gt;%s&lt;/Code&gt;&lt;/ProductCodes&gt;</productCodesXml>
</GetProductData>
</soap:Body>
</soap:Envelope>`

func xmlEscape(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}

// soapResult is the outer envelope reduced to the pieces the client acts
// on: the in-band error message from the service header and the text of
// the operation's result element.
type soapResult struct {
	ErrorMessage string
	Result       string
	HasResult    bool
}

func (r *soapResult) authExpired() bool {
	return r.ErrorMessage == authExpiredMessage
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	return dec
}

// parseEnvelope scans the outer SOAP envelope for the WebServiceHeader
// error message and the named result element. Element names are matched
// by local name, the service's namespace prefixes vary.
func parseEnvelope(data []byte, resultName string) (*soapResult, error) {
	dec := newDecoder(bytes.NewReader(data))
	res := &soapResult{}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing envelope: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "ErrorMessage":
			if err := dec.DecodeElement(&res.ErrorMessage, &se); err != nil {
				return nil, fmt.Errorf("parsing envelope error message: %w", err)
			}
		case resultName:
			if err := dec.DecodeElement(&res.Result, &se); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", resultName, err)
			}
			res.HasResult = true
		}
	}
	return res, nil
}

// parseProductCodes extracts the sku of every Code element in the inner
// product-codes document.
func parseProductCodes(inner string) ([]string, error) {
	type codeEntry struct {
		SKU string `xml:"sku"`
	}

	dec := newDecoder(strings.NewReader(inner))
	var codes []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing product codes: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Code" {
			continue
		}
		var entry codeEntry
		if err := dec.DecodeElement(&entry, &se); err != nil {
			return nil, fmt.Errorf("parsing product code entry: %w", err)
		}
		if entry.SKU != "" {
			codes = append(codes, entry.SKU)
		}
	}
	return codes, nil
}

// parseStock finds the first stock element in the inner stock document
// and parses it as an integer. A missing or non-numeric value is reported
// as an error so the caller can log it, it is never a retryable condition.
func parseStock(inner string) (int, error) {
	dec := newDecoder(strings.NewReader(inner))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("parsing stock document: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "stock" {
			continue
		}
		var raw string
		if err := dec.DecodeElement(&raw, &se); err != nil {
			return 0, fmt.Errorf("parsing stock element: %w", err)
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		level, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid stock value %q", raw)
		}
		return level, nil
	}
	return 0, fmt.Errorf("stock level not found")
}

// parseProductData returns the msrp and barcode of the first Product in
// the inner product-data document that carries both.
func parseProductData(inner string) (price, barcode string, err error) {
	type productEntry struct {
		MSRP    string `xml:"msrp"`
		Barcode string `xml:"barcode"`
	}

	dec := newDecoder(strings.NewReader(inner))
	seen := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", fmt.Errorf("parsing product data: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Product" {
			continue
		}
		seen = true
		var entry productEntry
		if err := dec.DecodeElement(&entry, &se); err != nil {
			return "", "", fmt.Errorf("parsing product entry: %w", err)
		}
		if entry.MSRP != "" && entry.Barcode != "" {
			return entry.MSRP, entry.Barcode, nil
		}
	}
	if seen {
		return "", "", fmt.Errorf("product entry missing price or barcode")
	}
	return "", "", fmt.Errorf("no product data found")
}
