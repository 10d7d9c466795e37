package httpapi

import (
	"bufio"
	"errors"
	"io"
	"net/url"
	"strings"

	apperrors "github.com/louisbranch/rendezvous/internal/platform/errors"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/domain"
)

// maxBodyBytes bounds the POST body read.
const maxBodyBytes = 64 << 10

// readForm parses the first line of body as name=value pairs joined by '&'.
// Field order follows the body; a repeated name keeps its first position and
// its last value. More than domain.MaxFields distinct names is unreadable.
func readForm(body io.Reader) (domain.Bundle, error) {
	line, err := bufio.NewReader(body).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return domain.Bundle{}, apperrors.Wrap(apperrors.CodeRequestUnreadable, "read request body", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return domain.Bundle{}, apperrors.New(apperrors.CodeRequestUnreadable, "request body is empty")
	}
	return parseForm(line)
}

func parseForm(query string) (domain.Bundle, error) {
	var bundle domain.Bundle
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		rawName, rawValue, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(rawName)
		if err != nil {
			return domain.Bundle{}, apperrors.Wrap(apperrors.CodeRequestUnreadable, "decode field name", err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return domain.Bundle{}, apperrors.Wrap(apperrors.CodeRequestUnreadable, "decode field "+name, err)
		}
		bundle.Set(name, value)
		if bundle.Len() > domain.MaxFields {
			return domain.Bundle{}, apperrors.New(apperrors.CodeRequestUnreadable, "too many fields")
		}
	}
	return bundle, nil
}
