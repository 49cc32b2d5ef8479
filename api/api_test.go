package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/dbaasd/dbaasd/api"

	"code.cloudfoundry.org/lager"
	"code.cloudfoundry.org/lager/lagertest"
	"github.com/jinzhu/gorm"

	"github.com/dbaasd/dbaasd/config"
	"github.com/dbaasd/dbaasd/credentials"
	execfake "github.com/dbaasd/dbaasd/executor/fakes"
	"github.com/dbaasd/dbaasd/identity"
	idfake "github.com/dbaasd/dbaasd/identity/fakes"
	"github.com/dbaasd/dbaasd/internaldb"
	"github.com/dbaasd/dbaasd/provisioner"
)

var _ = Describe("API", func() {
	var (
		db            *gorm.DB
		grantExecutor *execfake.FakeGrantExecutor
		resolver      *idfake.FakeResolver
		handler       http.Handler
		logger        lager.Logger

		encryptionKey = make([]byte, 32)
		alice         = identity.TenantIdentity{ID: "42", Username: "alice"}
	)

	BeforeEach(func() {
		logger = lager.NewLogger("api_test")
		logger.RegisterSink(lagertest.NewTestSink())
		os.Remove("/tmp/api_test.sqlite3")
		var err error
		db, err = internaldb.DBInit(&config.DBConfig{DBType: "sqlite3", DBName: "/tmp/api_test.sqlite3"}, logger)
		Expect(err).NotTo(HaveOccurred())
		catalog := internaldb.NewCatalog(db, logger)
		grantExecutor = &execfake.FakeGrantExecutor{}
		engine := provisioner.New(credentials.NewPolicy(""), grantExecutor, catalog, logger, encryptionKey, 30*time.Second)
		resolver = &idfake.FakeResolver{ResolveTenant: alice}
		handler = api.New(engine, resolver, logger)
	})

	AfterEach(func() {
		db.Close()
	})

	do := func(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
		var reader bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&reader).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &reader)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		return recorder
	}

	decode := func(recorder *httptest.ResponseRecorder) map[string]interface{} {
		var decoded map[string]interface{}
		Expect(json.Unmarshal(recorder.Body.Bytes(), &decoded)).To(Succeed())
		return decoded
	}

	Describe("authentication", func() {
		It("rejects requests without a bearer token", func() {
			recorder := do(http.MethodGet, "/v1/databases", nil, "")
			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
			Expect(decode(recorder)["error"]).To(Equal("unauthenticated"))
			Expect(resolver.ResolveCalled).To(BeFalse())
		})

		It("rejects requests with an unresolvable token", func() {
			resolver.ResolveError = identity.ErrUnauthenticated

			recorder := do(http.MethodGet, "/v1/databases", nil, "bad-token")
			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
			Expect(resolver.ResolveToken).To(Equal("bad-token"))
		})
	})

	Describe("POST /v1/databases", func() {
		It("creates a database and returns its credentials once", func() {
			recorder := do(http.MethodPost, "/v1/databases", map[string]string{"db_name": "my_db", "db_password": "s3cret"}, "token")
			Expect(recorder.Code).To(Equal(http.StatusCreated))

			body := decode(recorder)
			Expect(body["db_name"]).To(Equal("my_db"))
			Expect(body["db_password"]).To(Equal("s3cret"))
			Expect(body["id"]).NotTo(BeEmpty())
			Expect(grantExecutor.CreateCalled).To(BeTrue())
		})

		It("derives a name when none is given", func() {
			recorder := do(http.MethodPost, "/v1/databases", map[string]string{"db_password": "s3cret"}, "token")
			Expect(recorder.Code).To(Equal(http.StatusCreated))
			Expect(decode(recorder)["db_name"]).To(Equal("alice_42_db"))
		})

		It("rejects a name with whitespace", func() {
			recorder := do(http.MethodPost, "/v1/databases", map[string]string{"db_name": "my db", "db_password": "s3cret"}, "token")
			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(recorder)["error"]).To(Equal("invalid_input"))
			Expect(grantExecutor.CreateCalled).To(BeFalse())
		})

		It("maps duplicate names to a conflict", func() {
			Expect(do(http.MethodPost, "/v1/databases", map[string]string{"db_name": "my_db", "db_password": "s3cret"}, "token").Code).To(Equal(http.StatusCreated))

			recorder := do(http.MethodPost, "/v1/databases", map[string]string{"db_name": "my_db", "db_password": "s3cret"}, "token")
			Expect(recorder.Code).To(Equal(http.StatusConflict))
			Expect(decode(recorder)["error"]).To(Equal("duplicate"))
		})
	})

	Describe("GET /v1/databases", func() {
		It("lists the tenant's databases with stable fields", func() {
			created := decode(do(http.MethodPost, "/v1/databases", map[string]string{"db_name": "my_db", "db_password": "s3cret"}, "token"))

			recorder := do(http.MethodGet, "/v1/databases", nil, "token")
			Expect(recorder.Code).To(Equal(http.StatusOK))

			databases := decode(recorder)["databases"].([]interface{})
			Expect(databases).To(HaveLen(1))
			entry := databases[0].(map[string]interface{})
			Expect(entry["id"]).To(Equal(created["id"]))
			Expect(entry["db_name"]).To(Equal(created["db_name"]))
			Expect(entry["db_user"]).To(Equal(created["db_user"]))
			Expect(entry["db_password"]).To(Equal("s3cret"))
			Expect(entry["host"]).To(Equal(created["host"]))
		})

		It("returns an empty list for a tenant with no databases", func() {
			recorder := do(http.MethodGet, "/v1/databases", nil, "token")
			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(decode(recorder)["databases"]).To(BeEmpty())
		})
	})

	Describe("DELETE /v1/databases/{id}", func() {
		var grantID string

		BeforeEach(func() {
			created := decode(do(http.MethodPost, "/v1/databases", map[string]string{"db_name": "my_db", "db_password": "s3cret"}, "token"))
			grantID = created["id"].(string)
		})

		It("deletes and then reports not found on retry", func() {
			Expect(do(http.MethodDelete, "/v1/databases/"+grantID, nil, "token").Code).To(Equal(http.StatusOK))

			recorder := do(http.MethodDelete, "/v1/databases/"+grantID, nil, "token")
			Expect(recorder.Code).To(Equal(http.StatusNotFound))
			Expect(decode(recorder)["error"]).To(Equal("not_found"))
		})

		It("hides other tenants' grants", func() {
			resolver.ResolveTenant = identity.TenantIdentity{ID: "43", Username: "bob"}

			recorder := do(http.MethodDelete, "/v1/databases/"+grantID, nil, "token")
			Expect(recorder.Code).To(Equal(http.StatusNotFound))
			Expect(grantExecutor.DropCalled).To(BeFalse())
		})
	})
})
