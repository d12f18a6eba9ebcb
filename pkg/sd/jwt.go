package sd

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"strings"

	"sdvc/pkg/model"

	"github.com/golang-jwt/jwt/v5"
)

// Sign signs a JWT with the provided header, body, signing method and key.
func Sign(header, body jwt.MapClaims, signingMethod jwt.SigningMethod, signingKey any) (string, error) {
	token := jwt.NewWithClaims(signingMethod, body)
	token.Header = header
	return token.SignedString(signingKey)
}

// SigningMethodFromKey determines the JWT signing method and algorithm
// name from a private key.
func SigningMethodFromKey(privateKey any) (jwt.SigningMethod, string) {
	switch key := privateKey.(type) {
	case ed25519.PrivateKey:
		return jwt.SigningMethodEdDSA, "EdDSA"

	case *rsa.PrivateKey:
		switch keySize := key.N.BitLen(); {
		case keySize >= 4096:
			return jwt.SigningMethodRS512, "RS512"
		case keySize >= 3072:
			return jwt.SigningMethodRS384, "RS384"
		default:
			return jwt.SigningMethodRS256, "RS256"
		}

	case *ecdsa.PrivateKey:
		switch key.Curve.Params().Name {
		case "P-384":
			return jwt.SigningMethodES384, "ES384"
		case "P-521":
			return jwt.SigningMethodES512, "ES512"
		default:
			return jwt.SigningMethodES256, "ES256"
		}

	default:
		return jwt.SigningMethodES256, "ES256"
	}
}

// VerifyJWT checks the compact structure and signature of a JWT and
// returns the parsed token. Claims-level validation is left to callers.
func VerifyJWT(tokenString string, publicKey any) (*jwt.Token, error) {
	if strings.Count(tokenString, ".") != 2 {
		return nil, model.ErrInvalidJwtStructure
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return publicKey, nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}
