// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	coap "github.com/qwerty-iot/cloudcoap"
)

var mediaTypeNames = map[string]coap.MediaType{
	"text":   coap.TextPlain,
	"link":   coap.AppLinkFormat,
	"xml":    coap.AppXML,
	"octets": coap.AppOctets,
	"json":   coap.AppJSON,
	"cbor":   coap.AppCBOR,
	"senml":  coap.AppSenmlCBOR,
}

// parseMediaType accepts a short name such as "json" or a numeric content format.
func parseMediaType(s string) (coap.MediaType, error) {
	if mt, ok := mediaTypeNames[strings.ToLower(s)]; ok {
		return mt, nil
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown content format %q", s)
	}
	return coap.MediaType(n), nil
}

// parseMethod accepts a method name or its dotted code, e.g. "POST" or "0.02".
func parseMethod(s string) (coap.COAPCode, error) {
	var code coap.COAPCode
	if strings.Contains(s, ".") {
		code = coap.ToCOAPCode(s)
	} else {
		switch strings.ToUpper(s) {
		case "GET":
			code = coap.CodeGet
		case "POST":
			code = coap.CodePost
		case "PUT":
			code = coap.CodePut
		case "DELETE":
			code = coap.CodeDelete
		}
	}
	if !code.IsMethod() {
		return 0, fmt.Errorf("unsupported method %q", s)
	}
	return code, nil
}

// readPayload returns the payload given on the command line, the contents
// of file, or stdin when arg is "-".
func readPayload(args []string, file string) ([]byte, error) {
	switch {
	case file != "":
		return os.ReadFile(file)
	case len(args) == 0:
		return nil, nil
	case args[0] == "-":
		return io.ReadAll(os.Stdin)
	default:
		return []byte(args[0]), nil
	}
}

// formatPayload renders a payload for the terminal.
func formatPayload(ct coap.MediaType, data []byte) string {
	switch ct {
	case coap.AppCBOR, coap.AppSenmlCBOR:
		var v any
		if err := cbor.Unmarshal(data, &v); err == nil {
			return fmt.Sprintf("%v", v)
		}
	case coap.TextPlain, coap.AppJSON, coap.AppXML, coap.AppLinkFormat:
		return string(data)
	}
	return fmt.Sprintf("%x", data)
}
