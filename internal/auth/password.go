package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength é o tamanho mínimo aceito para senhas.
const MinPasswordLength = 8

// HashPassword gera o hash bcrypt da senha.
func HashPassword(senha string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(senha), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compara a senha com o hash armazenado.
func CheckPassword(hash, senha string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(senha)) == nil
}
