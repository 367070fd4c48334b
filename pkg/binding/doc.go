// Package binding attaches a session to every HTTP request.
//
// The session key travels in an HMAC-signed cookie. A session is reused only
// when it is live and was created from the same client IP; otherwise a new
// one is created and the cookie replaced. IP binding stops naive token
// copying but is not a complete session-fixation defense.
//
//	signer, _ := binding.NewHMACSigner(secret)
//	binder, _ := binding.New(manager, binding.Config{Signer: signer})
//	r := chi.NewRouter()
//	r.Use(binder.Middleware)
//	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
//	    sess := binding.FromContext(r.Context())
//	    ...
//	})
package binding
