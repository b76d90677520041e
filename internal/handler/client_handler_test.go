package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/testutil"
)

func TestListClientsPage(t *testing.T) {
	f := newWebFixture(t)
	f.loginAs(t, testutil.CreateUser(t, f.db, "func", model.GrupoFuncionarios))
	for i := 0; i < 12; i++ {
		testutil.CreateClient(t, f.db, fmt.Sprintf("Cliente Numero %c", 'A'+i), fmt.Sprintf("cliente%d@teste.com", i), 20+i)
	}
	testutil.CreateClient(t, f.db, "Maria Souza", "maria@teste.com", 40)

	t.Run("Primeira página", func(t *testing.T) {
		recorder := f.do(t, http.MethodGet, "/clients/", nil)
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
		body := recorder.Body.String()
		assert.Contains(t, body, "<small class=\"text-muted\">(13)</small>")
		assert.Contains(t, body, "Página 1 de 2")
		assert.NotContains(t, body, "Novo Cliente", "funcionário não cria clientes")
	})

	t.Run("Busca", func(t *testing.T) {
		recorder := f.do(t, http.MethodGet, "/clients/?search=maria", nil)
		require.Equal(t, http.StatusOK, recorder.Code)
		body := recorder.Body.String()
		assert.Contains(t, body, "Maria Souza")
		assert.NotContains(t, body, "Cliente Numero A")
	})

	t.Run("Idade inválida mostra erro e lista tudo", func(t *testing.T) {
		recorder := f.do(t, http.MethodGet, "/clients/?age_min=abc", nil)
		require.Equal(t, http.StatusOK, recorder.Code)
		body := recorder.Body.String()
		assert.Contains(t, body, "Informe um número inteiro.")
		assert.Contains(t, body, "(13)")
	})

	t.Run("Página além da última", func(t *testing.T) {
		recorder := f.do(t, http.MethodGet, "/clients/?page=9&search=cliente", nil)
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "Página 2 de 2")
	})
}

func TestCreateClientPage(t *testing.T) {
	f := newWebFixture(t)
	f.loginAs(t, testutil.CreateUser(t, f.db, "gerente", model.GrupoGerentes))

	t.Run("Sucesso", func(t *testing.T) {
		form := url.Values{"name": {"maria souza"}, "email": {"Maria@Teste.com"}, "age": {"30"}}
		recorder := f.do(t, http.MethodPost, "/clients/create_client/", form)
		require.Equal(t, http.StatusFound, recorder.Code, recorder.Body.String())

		var c model.Client
		require.NoError(t, f.db.Where("email = ?", "maria@teste.com").First(&c).Error)
		assert.Equal(t, "Maria Souza", c.Name)
		assert.Equal(t, fmt.Sprintf("/clients/detail_client/%d", c.ID), recorder.Header().Get("Location"))
		assert.Equal(t, []string{"Cliente Maria Souza criado com sucesso!"}, f.flashes(t, FlashSuccess))
	})

	t.Run("Erros no formulário", func(t *testing.T) {
		form := url.Values{"name": {"joao"}, "email": {"maria@teste.com"}, "age": {"15"}}
		recorder := f.do(t, http.MethodPost, "/clients/create_client/", form)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
		body := recorder.Body.String()
		assert.Contains(t, body, "Não aceitamos clientes menores de 18 anos.")
		assert.Contains(t, body, "Este email já está cadastrado.")
		assert.Contains(t, body, `value="joao"`)
	})

	t.Run("Idade não numérica", func(t *testing.T) {
		form := url.Values{"name": {"joao"}, "email": {"joao@teste.com"}, "age": {"vinte"}}
		recorder := f.do(t, http.MethodPost, "/clients/create_client/", form)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "Informe um número inteiro.")
	})
}

func TestUpdateAndDeleteClientPages(t *testing.T) {
	f := newWebFixture(t)
	f.loginAs(t, testutil.CreateSuperuser(t, f.db, "root"))
	c := testutil.CreateClient(t, f.db, "Maria Souza", "maria@teste.com", 40)
	testutil.CreatePedido(t, f.db, c.ID, "100.00")
	id := fmt.Sprint(c.ID)

	recorder := f.do(t, http.MethodGet, "/clients/update_client/"+id, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `value="maria@teste.com"`)

	recorder = f.do(t, http.MethodPost, "/clients/update_client/"+id, url.Values{"name": {"Maria Lima"}, "email": {"maria@teste.com"}, "age": {"41"}})
	require.Equal(t, http.StatusFound, recorder.Code, recorder.Body.String())
	assert.Equal(t, "/clients/detail_client/"+id, recorder.Header().Get("Location"))
	assert.Equal(t, []string{"Cliente Maria Lima atualizado com sucesso!"}, f.flashes(t, FlashSuccess))

	recorder = f.do(t, http.MethodGet, "/clients/detail_client/"+id, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.Contains(t, body, "<h1>Maria Lima</h1>")
	assert.Contains(t, body, "41 anos (36-50)")
	assert.Contains(t, body, "R$ 100,00")

	recorder = f.do(t, http.MethodGet, "/clients/delete_client/"+id, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Tem certeza que deseja excluir")

	recorder = f.do(t, http.MethodPost, "/clients/delete_client/"+id, url.Values{})
	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "/clients/", recorder.Header().Get("Location"))
	assert.Equal(t, []string{"Cliente Maria Lima foi excluído com sucesso!"}, f.flashes(t, FlashSuccess))

	var pedidos int64
	require.NoError(t, f.db.Model(&model.Pedido{}).Where("cliente_id = ?", c.ID).Count(&pedidos).Error)
	assert.Zero(t, pedidos)

	recorder = f.do(t, http.MethodGet, "/clients/detail_client/"+id, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = f.do(t, http.MethodGet, "/clients/detail_client/abc", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Página não encontrada.")
}

func TestBulkDeleteClientsPage(t *testing.T) {
	f := newWebFixture(t)
	f.loginAs(t, testutil.CreateUser(t, f.db, "admin", model.GrupoAdministradores))
	a := testutil.CreateClient(t, f.db, "Ana Lima", "ana@teste.com", 30)
	b := testutil.CreateClient(t, f.db, "Bruno Reis", "bruno@teste.com", 31)
	testutil.CreateClient(t, f.db, "Carla Dias", "carla@teste.com", 32)

	recorder := f.do(t, http.MethodPost, "/clients/bulk_delete/", url.Values{})
	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, []string{"Nenhum cliente selecionado."}, f.flashes(t, FlashWarning))
	f.do(t, http.MethodGet, "/clients/", nil)

	form := url.Values{"client_ids[]": {fmt.Sprint(a.ID), fmt.Sprint(b.ID), "999"}}
	recorder = f.do(t, http.MethodPost, "/clients/bulk_delete/", form)
	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "/clients/", recorder.Header().Get("Location"))
	assert.Equal(t, []string{"2 cliente(s) excluído(s) com sucesso!"}, f.flashes(t, FlashSuccess))

	var restantes int64
	require.NoError(t, f.db.Model(&model.Client{}).Count(&restantes).Error)
	assert.EqualValues(t, 1, restantes)
}

func TestManageUsersPage(t *testing.T) {
	f := newWebFixture(t)
	f.loginAs(t, testutil.CreateUser(t, f.db, "admin", model.GrupoAdministradores))
	alvo := testutil.CreateUser(t, f.db, "carlos", model.GrupoFuncionarios)

	var gerentes model.Grupo
	require.NoError(t, f.db.Where("name = ?", model.GrupoGerentes).First(&gerentes).Error)

	recorder := f.do(t, http.MethodGet, "/clients/manage_users/", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "carlos")

	form := url.Values{"user_id": {fmt.Sprint(alvo.ID)}, "groups": {fmt.Sprint(gerentes.ID)}}
	recorder = f.do(t, http.MethodPost, "/clients/manage_users/", form)
	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, "/clients/manage_users/", recorder.Header().Get("Location"))
	assert.Equal(t, []string{"Grupos do usuário carlos atualizados com sucesso!"}, f.flashes(t, FlashSuccess))

	var u model.Usuario
	require.NoError(t, f.db.Preload("Grupos").First(&u, alvo.ID).Error)
	assert.Equal(t, []string{model.GrupoGerentes}, u.GroupNames())

	f.do(t, http.MethodGet, "/clients/", nil)
	recorder = f.do(t, http.MethodPost, "/clients/manage_users/", url.Values{"user_id": {"x"}})
	assert.Equal(t, http.StatusFound, recorder.Code)
	assert.Equal(t, []string{"Erro ao atualizar grupos: usuário inválido."}, f.flashes(t, FlashError))
}

func TestClientPedidosPages(t *testing.T) {
	f := newWebFixture(t)
	f.loginAs(t, testutil.CreateUser(t, f.db, "gerente", model.GrupoGerentes))
	c := testutil.CreateClient(t, f.db, "Maria Souza", "maria@teste.com", 40)
	pendente := testutil.CreatePedido(t, f.db, c.ID, "100.00")
	entregue := testutil.CreatePedido(t, f.db, c.ID, "50.00", testutil.WithStatus(model.StatusEntregue))
	base := fmt.Sprintf("/clients/%d/pedidos/", c.ID)

	recorder := f.do(t, http.MethodGet, base+"?status=pendente", nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	body := recorder.Body.String()
	assert.Contains(t, body, pendente.NumeroPedido)
	assert.NotContains(t, body, entregue.NumeroPedido)
	assert.Contains(t, body, "2 pedido(s), total R$ 150,00, média R$ 75,00")

	recorder = f.do(t, http.MethodGet, base+"criar/", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Maria Souza (maria@teste.com)")

	form := url.Values{"descricao": {"Bolo de aniversário grande"}, "valor_total": {"150,50"}, "prioridade": {"alta"}}
	recorder = f.do(t, http.MethodPost, base+"criar/", form)
	require.Equal(t, http.StatusFound, recorder.Code, recorder.Body.String())

	var novo model.Pedido
	require.NoError(t, f.db.Where("cliente_id = ? AND prioridade = ?", c.ID, "alta").First(&novo).Error)
	assert.Equal(t, "150.5", novo.ValorTotal.String())
	assert.Equal(t, fmt.Sprintf("/pedidos/%d/", novo.ID), recorder.Header().Get("Location"))
	assert.Equal(t, []string{fmt.Sprintf("Pedido %s criado com sucesso!", novo.NumeroPedido)}, f.flashes(t, FlashSuccess))

	recorder = f.do(t, http.MethodPost, base+"criar/", url.Values{"descricao": {"curta"}, "valor_total": {"abc"}})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.True(t, strings.Contains(recorder.Body.String(), "Informe um número."))
}
