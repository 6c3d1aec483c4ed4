package payments

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Cart metadata schema v1. Entries are "id|qty|unitMinor|name;" concatenated and split across
// cart_0..cart_k so that each value stays within the gateway's 500 character limit.
const (
	CartMetadataVersion  = "1"
	MetaKeyCartVersion   = "cart_v"
	MetaKeyCartCount     = "cart_n"
	MetaKeyCustomerEmail = "customerEmail"
	MetaKeyCheckoutType  = "checkout_type"
	metaKeyChunkPrefix   = "cart_"

	maxMetadataValueRunes = 500
	maxMetadataKeys       = 50
	maxMetadataNameRunes  = 40
)

var (
	// ErrCartMetadataMissing is returned when no cart metadata is present.
	ErrCartMetadataMissing = errors.New("payments: cart metadata missing")
	// ErrCartMetadataInvalid is returned when cart metadata fails validation.
	ErrCartMetadataInvalid = errors.New("payments: cart metadata invalid")
	// ErrCartMetadataTooLarge is returned when a cart does not fit into gateway metadata.
	ErrCartMetadataTooLarge = errors.New("payments: cart too large for metadata")
)

// CartLine is the per-line record carried through gateway metadata.
type CartLine struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
}

var metaEscaper = strings.NewReplacer(`\`, `\\`, `|`, `\p`, `;`, `\s`)

func unescapeMeta(value string) (string, error) {
	if !strings.Contains(value, `\`) {
		return value, nil
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(value) {
			return "", fmt.Errorf("%w: dangling escape", ErrCartMetadataInvalid)
		}
		i++
		switch value[i] {
		case '\\':
			b.WriteByte('\\')
		case 'p':
			b.WriteByte('|')
		case 's':
			b.WriteByte(';')
		default:
			return "", fmt.Errorf("%w: unknown escape \\%c", ErrCartMetadataInvalid, value[i])
		}
	}
	return b.String(), nil
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}

// EncodeCartMetadata builds the versioned metadata map for lines and the customer email.
func EncodeCartMetadata(lines []CartLine, customerEmail string) (map[string]string, error) {
	var payload strings.Builder
	for _, line := range lines {
		payload.WriteString(metaEscaper.Replace(line.ProductID))
		payload.WriteByte('|')
		payload.WriteString(strconv.Itoa(line.Quantity))
		payload.WriteByte('|')
		payload.WriteString(strconv.FormatInt(line.UnitPrice, 10))
		payload.WriteByte('|')
		payload.WriteString(metaEscaper.Replace(truncateRunes(strings.TrimSpace(line.Name), maxMetadataNameRunes)))
		payload.WriteByte(';')
	}

	chunks := chunkRunes(payload.String(), maxMetadataValueRunes)
	// version, count, email and checkout type
	reserved := 4
	if len(chunks)+reserved > maxMetadataKeys {
		return nil, fmt.Errorf("%w: %d chunks", ErrCartMetadataTooLarge, len(chunks))
	}

	md := make(map[string]string, len(chunks)+reserved)
	md[MetaKeyCartVersion] = CartMetadataVersion
	md[MetaKeyCartCount] = strconv.Itoa(len(lines))
	if email := strings.TrimSpace(customerEmail); email != "" {
		md[MetaKeyCustomerEmail] = email
	}
	for i, chunk := range chunks {
		md[metaKeyChunkPrefix+strconv.Itoa(i)] = chunk
	}
	return md, nil
}

func chunkRunes(value string, size int) []string {
	if value == "" {
		return nil
	}
	var chunks []string
	runes := []rune(value)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// DecodeCartMetadata validates and parses metadata written by EncodeCartMetadata.
func DecodeCartMetadata(md map[string]string) ([]CartLine, error) {
	version, ok := md[MetaKeyCartVersion]
	if !ok {
		return nil, ErrCartMetadataMissing
	}
	if version != CartMetadataVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrCartMetadataInvalid, version)
	}
	count, err := strconv.Atoi(md[MetaKeyCartCount])
	if err != nil || count < 1 {
		return nil, fmt.Errorf("%w: bad line count %q", ErrCartMetadataInvalid, md[MetaKeyCartCount])
	}

	var payload strings.Builder
	for i := 0; ; i++ {
		chunk, ok := md[metaKeyChunkPrefix+strconv.Itoa(i)]
		if !ok {
			break
		}
		payload.WriteString(chunk)
	}

	entries := strings.Split(payload.String(), ";")
	if n := len(entries); n > 0 && entries[n-1] == "" {
		entries = entries[:n-1]
	}
	if len(entries) != count {
		return nil, fmt.Errorf("%w: expected %d lines, found %d", ErrCartMetadataInvalid, count, len(entries))
	}

	lines := make([]CartLine, 0, count)
	for idx, entry := range entries {
		line, err := decodeCartLine(entry)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", idx, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func decodeCartLine(entry string) (CartLine, error) {
	fields := strings.Split(entry, "|")
	if len(fields) != 4 {
		return CartLine{}, fmt.Errorf("%w: expected 4 fields, found %d", ErrCartMetadataInvalid, len(fields))
	}
	id, err := unescapeMeta(fields[0])
	if err != nil {
		return CartLine{}, err
	}
	if strings.TrimSpace(id) == "" {
		return CartLine{}, fmt.Errorf("%w: empty product id", ErrCartMetadataInvalid)
	}
	qty, err := strconv.Atoi(fields[1])
	if err != nil || qty < 1 {
		return CartLine{}, fmt.Errorf("%w: bad quantity %q", ErrCartMetadataInvalid, fields[1])
	}
	unit, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || unit < 0 {
		return CartLine{}, fmt.Errorf("%w: bad unit price %q", ErrCartMetadataInvalid, fields[2])
	}
	name, err := unescapeMeta(fields[3])
	if err != nil {
		return CartLine{}, err
	}
	return CartLine{ProductID: id, Name: name, Quantity: qty, UnitPrice: unit}, nil
}
