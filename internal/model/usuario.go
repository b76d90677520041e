// /internal/model/usuario.go
package model

import (
	"strings"
	"time"
)

// Grupos de acesso da aplicação.
const (
	GrupoAdministradores = "Administradores"
	GrupoGerentes        = "Gerentes"
	GrupoFuncionarios    = "Funcionários"
)

// Usuario é a conta de acesso ao sistema.
type Usuario struct {
	ID          uint         `gorm:"primaryKey"`
	Username    string       `gorm:"size:150;uniqueIndex;not null"`
	Email       string       `gorm:"size:254;uniqueIndex;not null"`
	FirstName   string       `gorm:"size:150"`
	LastName    string       `gorm:"size:150"`
	SenhaHash   string       `gorm:"not null"`
	IsActive    bool         `gorm:"not null;default:true"`
	IsStaff     bool         `gorm:"not null;default:false"`
	IsSuperuser bool         `gorm:"not null;default:false"`
	LastLogin   *time.Time
	DateJoined  time.Time    `gorm:"autoCreateTime"`
	Grupos      []Grupo      `gorm:"many2many:usuario_grupos;"`
	Profile     *UserProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	UpdatedAt   time.Time
}

// FullName devolve nome e sobrenome, ou o username quando ambos estão vazios.
func (u Usuario) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u Usuario) GroupNames() []string {
	names := make([]string, 0, len(u.Grupos))
	for _, g := range u.Grupos {
		names = append(names, g.Name)
	}
	return names
}

// InGroup indica se o usuário pertence a algum dos grupos informados.
func (u Usuario) InGroup(names ...string) bool {
	for _, g := range u.Grupos {
		for _, n := range names {
			if g.Name == n {
				return true
			}
		}
	}
	return false
}

// Grupo agrupa permissões por codename, separados por vírgula.
type Grupo struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:150;uniqueIndex;not null"`
	Permissoes string `gorm:"type:text"`
}

func (g Grupo) PermissionList() []string {
	if g.Permissoes == "" {
		return nil
	}
	return strings.Split(g.Permissoes, ",")
}

// UserProfile guarda os dados complementares do usuário.
type UserProfile struct {
	ID           uint       `gorm:"primaryKey"`
	UserID       uint       `gorm:"uniqueIndex;not null"`
	ProfilePhoto string     `gorm:"size:255"`
	Bio          string     `gorm:"size:500"`
	Phone        string     `gorm:"size:20"`
	BirthDate    *time.Time `gorm:"type:date"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
