package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/oauthkit/oauthkit"
)

// errorBody is the JSON error payload (RFC 6749 §5.2).
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Hint             string `json:"hint,omitempty"`
}

// WriteError renders err as a protocol error response. An *oauthkit.Error
// carrying a redirect URI becomes a 302 with the error payload encoded
// into the query string or fragment; everything else becomes a JSON body.
// Non-protocol errors are masked as server_error so internal detail never
// reaches the client.
//
// hadAuthHeader selects the WWW-Authenticate challenge on invalid_client
// responses, per RFC 6749 §5.2.
func WriteError(w http.ResponseWriter, err error, hadAuthHeader bool) error {
	oerr := AsProtocolError(err)

	if oerr.RedirectURI != "" {
		params := url.Values{}
		params.Set("error", oerr.Code)
		params.Set("error_description", oerr.Description)
		if oerr.Hint != "" {
			params.Set("hint", oerr.Hint)
		}
		uri, uriErr := MakeRedirectURI(oerr.RedirectURI, params, oerr.UseFragment)
		if uriErr != nil {
			return writeJSONError(w, oauthkit.NewServerError("could not build error redirect"), hadAuthHeader)
		}
		redirect := &Redirect{URI: uri}
		return redirect.Write(w)
	}

	return writeJSONError(w, oerr, hadAuthHeader)
}

func writeJSONError(w http.ResponseWriter, oerr *oauthkit.Error, hadAuthHeader bool) error {
	if oerr.Code == oauthkit.ErrorCodeInvalidClient && hadAuthHeader {
		w.Header().Set("WWW-Authenticate", `Basic realm="OAuth"`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(oerr.Status)
	return json.NewEncoder(w).Encode(errorBody{
		Error:            oerr.Code,
		ErrorDescription: oerr.Description,
		Hint:             oerr.Hint,
	})
}

// AsProtocolError coerces err to an *oauthkit.Error, masking anything
// outside the taxonomy as a server_error.
func AsProtocolError(err error) *oauthkit.Error {
	var oerr *oauthkit.Error
	if errors.As(err, &oerr) {
		return oerr
	}
	return oauthkit.NewServerError("")
}
