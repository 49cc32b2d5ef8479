package provisioner_test

import (
	"context"
	"errors"
	"os"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	. "github.com/dbaasd/dbaasd/provisioner"

	"code.cloudfoundry.org/lager"
	"code.cloudfoundry.org/lager/lagertest"
	"github.com/jinzhu/gorm"

	"github.com/dbaasd/dbaasd/config"
	"github.com/dbaasd/dbaasd/credentials"
	"github.com/dbaasd/dbaasd/executor"
	execfake "github.com/dbaasd/dbaasd/executor/fakes"
	"github.com/dbaasd/dbaasd/identity"
	"github.com/dbaasd/dbaasd/internaldb"
	dbfake "github.com/dbaasd/dbaasd/internaldb/fakes"
)

var _ = Describe("Provisioner", func() {
	var (
		db            *gorm.DB
		catalog       *internaldb.Catalog
		grantExecutor *execfake.FakeGrantExecutor
		logger        lager.Logger
		engine        *Provisioner
		ctx           context.Context

		encryptionKey = make([]byte, 32)
		alice         = identity.TenantIdentity{ID: "42", Username: "alice"}
		bob           = identity.TenantIdentity{ID: "43", Username: "bob"}
	)

	BeforeEach(func() {
		logger = lager.NewLogger("provisioner_test")
		logger.RegisterSink(lagertest.NewTestSink())
		os.Remove("/tmp/provisioner_test.sqlite3")
		var err error
		db, err = internaldb.DBInit(&config.DBConfig{DBType: "sqlite3", DBName: "/tmp/provisioner_test.sqlite3"}, logger)
		Expect(err).NotTo(HaveOccurred())
		catalog = internaldb.NewCatalog(db, logger)
		grantExecutor = &execfake.FakeGrantExecutor{}
		engine = New(credentials.NewPolicy(""), grantExecutor, catalog, logger, encryptionKey, 30*time.Second)
		ctx = context.Background()
	})

	AfterEach(func() {
		db.Close()
	})

	Describe("Create", func() {
		It("provisions and records a grant", func() {
			result, err := engine.Create(ctx, alice, "my_db", "s3cret")
			Expect(err).NotTo(HaveOccurred())
			Expect(grantExecutor.CreateCalled).To(BeTrue())
			Expect(grantExecutor.CreateName).To(Equal("my_db"))
			Expect(grantExecutor.CreateTenantID).To(Equal("42"))

			Expect(result.ID).NotTo(BeEmpty())
			Expect(result.DatabaseName).To(Equal("my_db"))
			Expect(result.DatabasePassword).To(Equal("s3cret"))
			Expect(result.Orphaned).To(BeFalse())

			infos, err := engine.List(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(HaveLen(1))
			Expect(infos[0].ID).To(Equal(result.ID))
			Expect(infos[0].DatabaseName).To(Equal(result.DatabaseName))
			Expect(infos[0].DatabaseUser).To(Equal(result.DatabaseUser))
			Expect(infos[0].DatabasePassword).To(Equal("s3cret"))
			Expect(infos[0].Host).To(Equal(result.Host))
		})

		It("rejects a name with whitespace before any server contact", func() {
			_, err := engine.Create(ctx, alice, "my db", "s3cret")
			Expect(err).To(BeAssignableToTypeOf(&credentials.InvalidNameError{}))
			Expect(grantExecutor.CreateCalled).To(BeFalse())

			infos, err := engine.List(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(BeEmpty())
		})

		It("rejects a password with whitespace before any server contact", func() {
			_, err := engine.Create(ctx, alice, "my_db", "bad password")
			Expect(err).To(BeAssignableToTypeOf(&credentials.InvalidPasswordError{}))
			Expect(grantExecutor.CreateCalled).To(BeFalse())
		})

		It("generates a password when none is requested", func() {
			result, err := engine.Create(ctx, alice, "my_db", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.DatabasePassword).NotTo(BeEmpty())
			Expect(credentials.ValidatePassword(result.DatabasePassword)).To(Succeed())
		})

		It("derives the name from the tenant identity when none is requested", func() {
			result, err := engine.Create(ctx, alice, "", "s3cret")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.DatabaseName).To(Equal("alice_42_db"))
		})

		It("rejects a second derived-name create for the same tenant", func() {
			_, err := engine.Create(ctx, alice, "", "s3cret")
			Expect(err).NotTo(HaveOccurred())
			grantExecutor.CreateCalled = false

			_, err = engine.Create(ctx, alice, "", "s3cret")
			Expect(err).To(MatchError(internaldb.ErrDuplicate))
			Expect(grantExecutor.CreateCalled).To(BeFalse())
		})

		It("rejects a name already recorded for another tenant", func() {
			_, err := engine.Create(ctx, alice, "shared_name", "s3cret")
			Expect(err).NotTo(HaveOccurred())

			_, err = engine.Create(ctx, bob, "shared_name", "s3cret")
			Expect(err).To(MatchError(internaldb.ErrDuplicate))
		})

		It("passes server-side collisions through without touching the catalog", func() {
			grantExecutor.CreateError = &executor.NameCollisionError{Name: "my_db"}

			_, err := engine.Create(ctx, alice, "my_db", "s3cret")
			Expect(err).To(BeAssignableToTypeOf(&executor.NameCollisionError{}))

			infos, err := engine.List(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(BeEmpty())
		})

		It("passes execution errors through without touching the catalog", func() {
			grantExecutor.CreateError = &executor.ExecutionError{Cause: errors.New("connection refused")}

			_, err := engine.Create(ctx, alice, "my_db", "s3cret")
			Expect(err).To(BeAssignableToTypeOf(&executor.ExecutionError{}))

			infos, err := engine.List(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(BeEmpty())
		})

		Context("when the catalog insert reports a duplicate after server success", func() {
			var fakeCatalog *dbfake.FakeCatalog

			BeforeEach(func() {
				fakeCatalog = &dbfake.FakeCatalog{InsertError: internaldb.ErrDuplicate}
				engine = New(credentials.NewPolicy(""), grantExecutor, fakeCatalog, logger, encryptionKey, 30*time.Second)
			})

			It("drops the server objects it created and reports the collision", func() {
				result, err := engine.Create(ctx, alice, "shared_name", "s3cret")
				Expect(err).To(MatchError(internaldb.ErrDuplicate))
				Expect(result.Orphaned).To(BeFalse())
				Expect(result.DatabaseName).To(BeEmpty())

				Expect(grantExecutor.DropCalled).To(BeTrue())
				Expect(grantExecutor.DropName).To(Equal("shared_name"))
				Expect(grantExecutor.DropUsername).To(Equal("u_shared_name"))
			})

			It("still reports the collision when the compensating drop fails", func() {
				grantExecutor.DropError = &executor.ExecutionError{Cause: errors.New("connection refused")}

				_, err := engine.Create(ctx, alice, "shared_name", "s3cret")
				Expect(err).To(MatchError(internaldb.ErrDuplicate))
			})
		})

		Context("when the catalog insert fails after server success", func() {
			var fakeCatalog *dbfake.FakeCatalog

			BeforeEach(func() {
				fakeCatalog = &dbfake.FakeCatalog{InsertError: errors.New("storage outage")}
				engine = New(credentials.NewPolicy(""), grantExecutor, fakeCatalog, logger, encryptionKey, 30*time.Second)
			})

			It("still reports success, flagged as orphaned", func() {
				result, err := engine.Create(ctx, alice, "my_db", "s3cret")
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Orphaned).To(BeTrue())
				Expect(result.DatabaseName).To(Equal("my_db"))
				Expect(result.DatabasePassword).To(Equal("s3cret"))
				Expect(result.ID).To(BeEmpty())
			})
		})
	})

	Describe("List", func() {
		It("returns grants newest first and stable across calls", func() {
			first, err := engine.Create(ctx, alice, "db_one", "s3cret")
			Expect(err).NotTo(HaveOccurred())
			second, err := engine.Create(ctx, alice, "db_two", "s3cret")
			Expect(err).NotTo(HaveOccurred())

			infos, err := engine.List(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(HaveLen(2))
			Expect(infos[0].ID).To(Equal(second.ID))
			Expect(infos[1].ID).To(Equal(first.ID))

			again, err := engine.List(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(infos))
		})

		It("does not leak other tenants' grants", func() {
			_, err := engine.Create(ctx, alice, "alice_db", "s3cret")
			Expect(err).NotTo(HaveOccurred())

			infos, err := engine.List(ctx, bob)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(BeEmpty())
		})
	})

	Describe("Delete", func() {
		var grantID string

		BeforeEach(func() {
			result, err := engine.Create(ctx, alice, "my_db", "s3cret")
			Expect(err).NotTo(HaveOccurred())
			grantID = result.ID
		})

		It("drops the server objects and removes the record", func() {
			Expect(engine.Delete(ctx, alice, grantID)).To(Succeed())
			Expect(grantExecutor.DropCalled).To(BeTrue())
			Expect(grantExecutor.DropName).To(Equal("my_db"))

			infos, err := engine.List(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(BeEmpty())
		})

		It("converges: the second delete returns not found", func() {
			Expect(engine.Delete(ctx, alice, grantID)).To(Succeed())
			Expect(engine.Delete(ctx, alice, grantID)).To(MatchError(internaldb.ErrNotFound))
		})

		It("refuses another tenant's grant and leaves it untouched", func() {
			Expect(engine.Delete(ctx, bob, grantID)).To(MatchError(internaldb.ErrNotFound))
			Expect(grantExecutor.DropCalled).To(BeFalse())

			infos, err := engine.List(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(HaveLen(1))
		})

		It("keeps the record when the server drop fails", func() {
			grantExecutor.DropError = &executor.ExecutionError{Cause: errors.New("connection refused")}

			err := engine.Delete(ctx, alice, grantID)
			Expect(err).To(BeAssignableToTypeOf(&executor.ExecutionError{}))

			infos, err := engine.List(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(HaveLen(1))
		})

		Context("when the catalog remove fails after a successful drop", func() {
			var fakeCatalog *dbfake.FakeCatalog

			BeforeEach(func() {
				grant, err := internaldb.NewGrant(alice, "my_db", "u42_my_db", "s3cret", "backend.example.com", 3306, encryptionKey)
				Expect(err).NotTo(HaveOccurred())
				fakeCatalog = &dbfake.FakeCatalog{
					FindByIDAndOwnerGrant: grant,
					RemoveError:           errors.New("storage outage"),
				}
				engine = New(credentials.NewPolicy(""), grantExecutor, fakeCatalog, logger, encryptionKey, 30*time.Second)
			})

			It("reports partial success and marks the row for reconciliation", func() {
				err := engine.Delete(ctx, alice, "some-grant")
				var partialErr *PartialSuccessError
				Expect(errors.As(err, &partialErr)).To(BeTrue())
				Expect(grantExecutor.DropCalled).To(BeTrue())
				Expect(fakeCatalog.MarkForReconcileCalled).To(BeTrue())
			})
		})

		Context("when the grant is already flagged for reconciliation", func() {
			var fakeCatalog *dbfake.FakeCatalog

			BeforeEach(func() {
				grant, err := internaldb.NewGrant(alice, "my_db", "u42_my_db", "s3cret", "backend.example.com", 3306, encryptionKey)
				Expect(err).NotTo(HaveOccurred())
				grant.Reconcile = true
				fakeCatalog = &dbfake.FakeCatalog{FindByIDAndOwnerGrant: grant}
				engine = New(credentials.NewPolicy(""), grantExecutor, fakeCatalog, logger, encryptionKey, 30*time.Second)
			})

			It("skips the server drop and removes the stale row", func() {
				Expect(engine.Delete(ctx, alice, "some-grant")).To(Succeed())
				Expect(grantExecutor.DropCalled).To(BeFalse())
				Expect(fakeCatalog.RemoveCalled).To(BeTrue())
			})
		})
	})
})
