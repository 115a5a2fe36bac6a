package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims - утверждения токена: стандартные плюс код кассира
type Claims struct {
	jwt.RegisteredClaims
	UserCode string
}

var ErrInvalidToken = errors.New("token is not valid")

// BuildJWTString создаёт токен и возвращает его в виде строки
func BuildJWTString(userCode string, secretKey string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// срок действия токена
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		UserCode: userCode,
	})

	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// GetUserCode проверяет подпись и срок и возвращает код кассира
func GetUserCode(tokenString string, secretKey string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secretKey), nil
		})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.UserCode == "" {
		return "", ErrInvalidToken
	}
	return claims.UserCode, nil
}
