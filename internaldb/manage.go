package internaldb

import (
	"fmt"

	"code.cloudfoundry.org/lager"
	"github.com/jinzhu/gorm"
)

func RotateKey(db *gorm.DB, old_key, new_key []byte, logger lager.Logger, failFast bool) error {
	var grants []DatabaseGrant
	err_count := 0
	err := db.Find(&grants).Error
	if err != nil {
		logger.Fatal("get-grants", err)
	}
	RotateOne := func(grant DatabaseGrant) error {
		password, err := grant.Password(old_key)
		if err != nil {
			logger.Error("decrypt-password", err, lager.Data{"grant": grant.GrantID, "database": grant.DatabaseName})
			return err
		}
		err = grant.SetPassword(password, new_key)
		if err != nil {
			logger.Error("encrypt-password", err, lager.Data{"grant": grant.GrantID, "database": grant.DatabaseName})
			return err
		}
		err = db.Save(&grant).Error
		if err != nil {
			logger.Error("save-password", err, lager.Data{"grant": grant.GrantID, "database": grant.DatabaseName})
			return err
		}
		return err
	}
	for _, grant := range grants {
		err = RotateOne(grant)
		if err != nil {
			if failFast {
				return err
			} else {
				err_count += 1
			}
		}
	}
	if err_count != 0 {
		return fmt.Errorf("Key rotation completed with %d errors. See the logs for more details.", err_count)
	}
	return nil
}
