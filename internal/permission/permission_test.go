package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericoliveiras/gestao-clientes/internal/model"
)

func userIn(groups ...string) *model.Usuario {
	u := &model.Usuario{Username: "u", IsActive: true}
	for _, g := range groups {
		u.Grupos = append(u.Grupos, model.Grupo{Name: g})
	}
	return u
}

func TestCanMatrix(t *testing.T) {
	admin := userIn(model.GrupoAdministradores)
	gerente := userIn(model.GrupoGerentes)
	func_ := userIn(model.GrupoFuncionarios)
	nenhum := userIn()

	assert.True(t, Can(func_, View))
	assert.True(t, Can(func_, UpdateStatus))
	assert.False(t, Can(func_, Create))
	assert.False(t, Can(func_, Cancel))

	assert.True(t, Can(gerente, Create))
	assert.True(t, Can(gerente, Cancel))
	assert.False(t, Can(gerente, Delete))
	assert.False(t, Can(gerente, Bulk))

	assert.True(t, Can(admin, Delete))
	assert.True(t, Can(admin, ManageUsers))

	assert.False(t, Can(nenhum, View))
	assert.False(t, Can(nil, View))
}

func TestSuperuserAndInactive(t *testing.T) {
	su := &model.Usuario{IsActive: true, IsSuperuser: true}
	assert.True(t, Can(su, ManageUsers))
	assert.Equal(t, []string{"all"}, UserPermissions(su))

	inativo := userIn(model.GrupoAdministradores)
	inativo.IsActive = false
	assert.False(t, Can(inativo, View))
}

func TestUserPermissions(t *testing.T) {
	assert.Equal(t, []string{"all"}, UserPermissions(userIn(model.GrupoAdministradores)))
	assert.Equal(t, []string{"read", "write", "update", "delete_own"}, UserPermissions(userIn(model.GrupoGerentes)))
	assert.Equal(t, []string{"read", "update_status"}, UserPermissions(userIn(model.GrupoFuncionarios)))
	assert.Equal(t, []string{"read", "write", "update", "delete_own", "update_status"},
		UserPermissions(userIn(model.GrupoGerentes, model.GrupoFuncionarios)))
	assert.Empty(t, UserPermissions(userIn()))
}

func TestFlagsFor(t *testing.T) {
	f := FlagsFor(userIn(model.GrupoGerentes))
	assert.True(t, f.CanCreate)
	assert.True(t, f.CanEdit)
	assert.False(t, f.CanDelete)
	assert.False(t, f.CanBulkActions)
	assert.True(t, f.CanChangeStatus)
}
