// Package permission concentra as regras de acesso por grupo.
package permission

import (
	"github.com/ericoliveiras/gestao-clientes/internal/model"
)

// Action é uma operação protegida por grupo.
type Action string

const (
	View         Action = "view"
	Create       Action = "create"
	Update       Action = "update"
	Cancel       Action = "cancel"
	UpdateStatus Action = "update_status"
	Delete       Action = "delete"
	Bulk         Action = "bulk"
	ManageUsers  Action = "manage_users"
)

var todos = []string{model.GrupoAdministradores, model.GrupoGerentes, model.GrupoFuncionarios}
var gestores = []string{model.GrupoAdministradores, model.GrupoGerentes}
var admins = []string{model.GrupoAdministradores}

var matrix = map[Action][]string{
	View:         todos,
	UpdateStatus: todos,
	Create:       gestores,
	Update:       gestores,
	Cancel:       gestores,
	Delete:       admins,
	Bulk:         admins,
	ManageUsers:  admins,
}

// GroupsFor devolve os grupos autorizados para a ação.
func GroupsFor(a Action) []string {
	return matrix[a]
}

// Can indica se o usuário pode executar a ação. Superusuários sempre podem.
func Can(u *model.Usuario, a Action) bool {
	if u == nil || !u.IsActive {
		return false
	}
	if u.IsSuperuser {
		return true
	}
	groups, ok := matrix[a]
	if !ok {
		return false
	}
	return u.InGroup(groups...)
}

// UserPermissions resume as permissões do usuário para os tokens e o user-info.
func UserPermissions(u *model.Usuario) []string {
	perms := []string{}
	if u == nil {
		return perms
	}
	if u.IsSuperuser || u.InGroup(model.GrupoAdministradores) {
		return append(perms, "all")
	}
	if u.InGroup(model.GrupoGerentes) {
		perms = append(perms, "read", "write", "update", "delete_own")
	}
	if u.InGroup(model.GrupoFuncionarios) {
		perms = appendMissing(perms, "read", "update_status")
	}
	return perms
}

func appendMissing(perms []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, p := range perms {
			if p == it {
				found = true
				break
			}
		}
		if !found {
			perms = append(perms, it)
		}
	}
	return perms
}

// Flags são os indicadores usados pelos templates e pela API.
type Flags struct {
	CanCreate       bool `json:"can_create"`
	CanEdit         bool `json:"can_edit"`
	CanDelete       bool `json:"can_delete"`
	CanBulkActions  bool `json:"can_bulk_actions"`
	CanChangeStatus bool `json:"can_change_status"`
	CanCancel       bool `json:"can_cancel"`
	CanManageUsers  bool `json:"can_manage_users"`
}

func FlagsFor(u *model.Usuario) Flags {
	return Flags{
		CanCreate:       Can(u, Create),
		CanEdit:         Can(u, Update),
		CanDelete:       Can(u, Delete),
		CanBulkActions:  Can(u, Bulk),
		CanChangeStatus: Can(u, UpdateStatus),
		CanCancel:       Can(u, Cancel),
		CanManageUsers:  Can(u, ManageUsers),
	}
}

// GroupPermissionsByModel lista os codenames de cada grupo criado pelo setup-groups.
var GroupPermissionsByModel = map[string][]string{
	model.GrupoAdministradores: {"view_client", "add_client", "change_client", "delete_client"},
	model.GrupoGerentes:        {"view_client", "add_client", "change_client"},
	model.GrupoFuncionarios:    {"view_client"},
}

// GroupOrder é a ordem de criação e exibição dos grupos.
var GroupOrder = []string{model.GrupoAdministradores, model.GrupoGerentes, model.GrupoFuncionarios}
