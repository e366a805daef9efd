package app

import (
	"fmt"
	"sync"

	apikeyHTTP "github.com/allisson/apikeys/internal/apikey/http"
	apikeyRepository "github.com/allisson/apikeys/internal/apikey/repository"
	apikeyService "github.com/allisson/apikeys/internal/apikey/service"
	apikeyUseCase "github.com/allisson/apikeys/internal/apikey/usecase"
	"github.com/allisson/apikeys/internal/database"
)

// apiKeyComponents groups the lazily built API key components of the container.
type apiKeyComponents struct {
	keyCodec           apikeyService.KeyCodec
	secretHasher       apikeyService.SecretHasher
	apiKeyRepository   apikeyUseCase.APIKeyRepository
	auditLogRepository apikeyUseCase.AuditLogRepository
	auditLogUseCase    apikeyUseCase.AuditLogService
	apiKeyUseCase      apikeyUseCase.APIKeyUseCase
	authGate           *apikeyHTTP.AuthenticationGate
	authHandler        *apikeyHTTP.AuthHandler

	keyCodecInit           sync.Once
	secretHasherInit       sync.Once
	apiKeyRepositoryInit   sync.Once
	auditLogRepositoryInit sync.Once
	auditLogUseCaseInit    sync.Once
	apiKeyUseCaseInit      sync.Once
	authGateInit           sync.Once
	authHandlerInit        sync.Once
}

// KeyCodec returns the codec that generates, parses and redacts API key secrets.
func (c *Container) KeyCodec() (apikeyService.KeyCodec, error) {
	err := c.lazy(&c.keyCodecInit, "keyCodec", func() error {
		params := c.config.KeyParams()
		if err := params.Validate(); err != nil {
			return fmt.Errorf("invalid api key parameters: %w", err)
		}
		c.keyCodec = apikeyService.NewKeyCodec(params)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.keyCodec, nil
}

// SecretHasher returns the hasher selected by API_KEY_HASH_ALGORITHM.
func (c *Container) SecretHasher() (apikeyService.SecretHasher, error) {
	err := c.lazy(&c.secretHasherInit, "secretHasher", func() error {
		hasher, err := apikeyService.NewSecretHasher(c.config.KeyParams())
		if err != nil {
			return fmt.Errorf("failed to create secret hasher: %w", err)
		}
		c.secretHasher = hasher
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.secretHasher, nil
}

// APIKeyRepository returns the API key repository based on database driver.
func (c *Container) APIKeyRepository() (apikeyUseCase.APIKeyRepository, error) {
	err := c.lazy(&c.apiKeyRepositoryInit, "apiKeyRepository", func() error {
		var err error
		c.apiKeyRepository, err = c.initAPIKeyRepository()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.apiKeyRepository, nil
}

// AuditLogRepository returns the audit log repository based on database driver.
func (c *Container) AuditLogRepository() (apikeyUseCase.AuditLogRepository, error) {
	err := c.lazy(&c.auditLogRepositoryInit, "auditLogRepository", func() error {
		var err error
		c.auditLogRepository, err = c.initAuditLogRepository()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.auditLogRepository, nil
}

// AuditLogUseCase returns the audit log use case, which is also the audit sink of the
// API key use case.
func (c *Container) AuditLogUseCase() (apikeyUseCase.AuditLogService, error) {
	err := c.lazy(&c.auditLogUseCaseInit, "auditLogUseCase", func() error {
		repo, err := c.AuditLogRepository()
		if err != nil {
			return fmt.Errorf("failed to get audit log repository for audit log use case: %w", err)
		}
		c.auditLogUseCase = apikeyUseCase.NewAuditLogUseCase(repo, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.auditLogUseCase, nil
}

// APIKeyUseCase returns the API key use case, wrapped with metrics when enabled.
func (c *Container) APIKeyUseCase() (apikeyUseCase.APIKeyUseCase, error) {
	err := c.lazy(&c.apiKeyUseCaseInit, "apiKeyUseCase", func() error {
		var err error
		c.apiKeyUseCase, err = c.initAPIKeyUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.apiKeyUseCase, nil
}

// AuthenticationGate returns the gate guarding authenticated routes.
func (c *Container) AuthenticationGate() (*apikeyHTTP.AuthenticationGate, error) {
	err := c.lazy(&c.authGateInit, "authGate", func() error {
		useCase, err := c.APIKeyUseCase()
		if err != nil {
			return fmt.Errorf("failed to get api key use case for authentication gate: %w", err)
		}
		codec, err := c.KeyCodec()
		if err != nil {
			return fmt.Errorf("failed to get key codec for authentication gate: %w", err)
		}
		recorder, err := c.BusinessMetrics()
		if err != nil {
			return fmt.Errorf("failed to get metrics for authentication gate: %w", err)
		}
		c.authGate = apikeyHTTP.NewAuthenticationGate(
			useCase,
			codec,
			c.config.APIKeyHeader,
			recorder,
			c.Logger(),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.authGate, nil
}

// AuthHandler returns the handler for authenticated self-inspection routes.
func (c *Container) AuthHandler() (*apikeyHTTP.AuthHandler, error) {
	err := c.lazy(&c.authHandlerInit, "authHandler", func() error {
		useCase, err := c.APIKeyUseCase()
		if err != nil {
			return fmt.Errorf("failed to get api key use case for auth handler: %w", err)
		}
		c.authHandler = apikeyHTTP.NewAuthHandler(useCase, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.authHandler, nil
}

// initAPIKeyRepository selects the API key repository for the configured driver.
func (c *Container) initAPIKeyRepository() (apikeyUseCase.APIKeyRepository, error) {
	if c.config.DBDriver == database.DriverMemory {
		return apikeyRepository.NewMemoryAPIKeyRepository(), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for api key repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverMySQL:
		return apikeyRepository.NewMySQLAPIKeyRepository(db), nil
	case database.DriverPostgres:
		return apikeyRepository.NewPostgreSQLAPIKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAuditLogRepository selects the audit log repository for the configured driver.
func (c *Container) initAuditLogRepository() (apikeyUseCase.AuditLogRepository, error) {
	if c.config.DBDriver == database.DriverMemory {
		return apikeyRepository.NewMemoryAuditLogRepository(), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for audit log repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverMySQL:
		return apikeyRepository.NewMySQLAuditLogRepository(db), nil
	case database.DriverPostgres:
		return apikeyRepository.NewPostgreSQLAuditLogRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAPIKeyUseCase creates the API key use case with all its dependencies.
func (c *Container) initAPIKeyUseCase() (apikeyUseCase.APIKeyUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for api key use case: %w", err)
	}

	repo, err := c.APIKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get api key repository for api key use case: %w", err)
	}

	auditLogUseCase, err := c.AuditLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for api key use case: %w", err)
	}

	codec, err := c.KeyCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to get key codec for api key use case: %w", err)
	}

	hasher, err := c.SecretHasher()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret hasher for api key use case: %w", err)
	}

	useCase := apikeyUseCase.NewAPIKeyUseCase(
		txManager,
		repo,
		auditLogUseCase,
		codec,
		hasher,
		apikeyUseCase.Options{
			MaxKeysPerOwner: c.config.APIKeyMaxPerOwner,
			UsageTimeout:    c.config.APIKeyUsageTimeout,
		},
		c.Logger(),
	)

	if !c.config.MetricsEnabled {
		return useCase, nil
	}

	recorder, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for api key use case: %w", err)
	}
	return apikeyUseCase.NewAPIKeyUseCaseWithMetrics(useCase, recorder), nil
}
