// Package registry owns the console's durable state: registered
// controllers, the ten scan unit associations, and the macro library.
//
// A Controller is identified by its destination hardware address in
// lowercase colon form. Scan units 1..UnitCount always exist; they are
// bound, cleared and enabled but never created or destroyed. Macros live
// either in the Global scope or in a controller's scope, and a
// controller's macros go away with it.
//
// # Persistence
//
// Every mutating method saves the complete Snapshot through the Storage
// collaborator before returning. A failed save rolls the in-memory state
// back and surfaces ErrPersistence, so callers can treat the registry as
// unchanged.
//
// # Thread Safety
//
// Registry is safe for concurrent use. Mutations and their rollback run
// under one lock.
//
// # Usage
//
//	reg := registry.New(store.NewJSONFile(path))
//	reg.SetLogger(log)
//	if err := reg.Load(ctx); err != nil {
//	    return err
//	}
//	err := reg.RegisterController(ctx, registry.Controller{
//	    Address: "AA:BB:CC:DD:EE:01", Source: src, Interface: "eth1", Label: "Unit1",
//	})
package registry
