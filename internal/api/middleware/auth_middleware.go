package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type SubmitterIDKey struct{}

// GetSubmitterIDFromContext retrieves the submitter ID from the context.
func GetSubmitterIDFromContext(ctx context.Context) (string, bool) {
	submitterID, ok := ctx.Value(SubmitterIDKey{}).(string)
	return submitterID, ok
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// SubmitterIdentity はJWTから投稿者IDを取り出すミドルウェアを返します。
// Authorizationヘッダーがない場合は匿名投稿としてそのまま通し、
// ヘッダーがあるのに検証に失敗した場合のみ401を返します。
func SubmitterIdentity(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := ""
			if len(authHeader) > 7 && authHeader[0:7] == "Bearer " {
				tokenString = authHeader[7:]
			} else {
				writeJSONError(w, http.StatusUnauthorized, "Invalid Authorization header format. Must be 'Bearer <token>'")
				return
			}

			if jwtSecret == "" {
				log.Println("Error: JWT secret is not configured.")
				writeJSONError(w, http.StatusInternalServerError, "Server configuration error: JWT secret missing")
				return
			}

			// JWTの検証とパース
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				// アルゴリズムがHMACであることを確認
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				log.Printf("SubmitterIdentity Error: JWT verification failed: %v", err)
				writeJSONError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}

			// 投稿者IDは 'sub' (Subject) クレームに格納されています。
			submitterID, ok := claims["sub"].(string)
			if !ok {
				log.Printf("SubmitterIdentity Error: JWT claims missing 'sub' or wrong type: %v", claims["sub"])
				writeJSONError(w, http.StatusUnauthorized, "Invalid token: missing subject")
				return
			}

			ctx := context.WithValue(r.Context(), SubmitterIDKey{}, submitterID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SharedSecret は直接投稿エンドポイント用の共有シークレット検証ミドルウェアを
// 返します。ベンチマークスクリプトは X-Benchmark-Secret ヘッダーで認証します。
func SharedSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				log.Println("Error: benchmark shared secret is not configured.")
				writeJSONError(w, http.StatusInternalServerError, "Server configuration error: shared secret missing")
				return
			}
			provided := strings.TrimSpace(r.Header.Get("X-Benchmark-Secret"))
			if provided == "" || provided != secret {
				writeJSONError(w, http.StatusUnauthorized, "Invalid or missing benchmark secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
